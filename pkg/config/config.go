package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default search paths for the competition configuration, in order.
var configPaths = []string{
	"competition.yaml",
	"/app/competition.yaml",
	"/config/competition.yaml",
}

// RedisConfig describes the broker a competition runs against.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
	DB   int    `yaml:"db"`
}

// Addr returns the host:port address of the broker.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Box is a VM template, instantiated once per team.
type Box struct {
	Name         string            `yaml:"name"`
	Labels       map[string]string `yaml:"labels,omitempty"`
	Cores        int               `yaml:"cores,omitempty"`
	RAMMB        int               `yaml:"ram_mb,omitempty"`
	BackingImage string            `yaml:"backing_image,omitempty"`
}

// Team has a name unique within its competition. Its 1-based position in
// the competition's team list is its team id; configuration order is stable.
type Team struct {
	Name string `yaml:"name"`
}

// HTTPMethod is the verb used by an HTTP check.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
)

// HTTPCheckSpec probes a path on the box and matches status code and body.
type HTTPCheckSpec struct {
	URL    string     `yaml:"url"`
	Code   int        `yaml:"code"`
	Regex  string     `yaml:"regex"`
	Method HTTPMethod `yaml:"method,omitempty"`
	Body   string     `yaml:"body,omitempty"`
}

// ICMPCheckSpec probes reachability. Code 0 expects the echo to succeed;
// any non-zero code expects it to fail.
type ICMPCheckSpec struct {
	Code int `yaml:"code"`
}

// SSHCheckSpec probes an SSH handshake plus authentication.
type SSHCheckSpec struct {
	Port     uint16 `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// ShellCheckSpec runs a script with the box hostname as its first argument.
// Exit status zero means success.
type ShellCheckSpec struct {
	Script  string `yaml:"script"`
	Timeout int    `yaml:"timeout,omitempty"`
}

// CheckSpec is a tagged variant over the supported probe kinds,
// discriminated by the "type" field in YAML.
type CheckSpec struct {
	Type  string
	HTTP  *HTTPCheckSpec
	ICMP  *ICMPCheckSpec
	SSH   *SSHCheckSpec
	Shell *ShellCheckSpec
}

// UnmarshalYAML decodes the variant selected by the "type" field.
func (s *CheckSpec) UnmarshalYAML(value *yaml.Node) error {
	var tag struct {
		Type string `yaml:"type"`
	}
	if err := value.Decode(&tag); err != nil {
		return err
	}
	s.Type = tag.Type
	switch tag.Type {
	case "http":
		s.HTTP = &HTTPCheckSpec{}
		return value.Decode(s.HTTP)
	case "icmp":
		s.ICMP = &ICMPCheckSpec{}
		return value.Decode(s.ICMP)
	case "ssh":
		s.SSH = &SSHCheckSpec{}
		return value.Decode(s.SSH)
	case "nix":
		s.Shell = &ShellCheckSpec{}
		return value.Decode(s.Shell)
	default:
		return fmt.Errorf("unknown check type %q", tag.Type)
	}
}

// MarshalYAML re-emits the variant with its type tag.
func (s CheckSpec) MarshalYAML() (interface{}, error) {
	var body interface{}
	switch s.Type {
	case "http":
		body = s.HTTP
	case "icmp":
		body = s.ICMP
	case "ssh":
		body = s.SSH
	case "nix":
		body = s.Shell
	default:
		return nil, fmt.Errorf("unknown check type %q", s.Type)
	}
	raw, err := yaml.Marshal(body)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{"type": s.Type}
	var fields map[string]interface{}
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

// Check is a periodic service probe worth Points per passing tick.
type Check struct {
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description,omitempty"`
	Interval      int               `yaml:"interval"`
	Points        int               `yaml:"points"`
	LabelSelector map[string]string `yaml:"label_selector,omitempty"`
	Spec          CheckSpec         `yaml:"spec"`
}

// IntervalDuration returns the check interval as a time.Duration.
func (c *Check) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// SelectsBox reports whether the check's label selector matches the box.
// An empty selector matches every box; otherwise every selector entry must
// equal the box label of the same key.
func (c *Check) SelectsBox(b *Box) bool {
	if len(c.LabelSelector) == 0 {
		return true
	}
	for k, v := range c.LabelSelector {
		if b.Labels[k] != v {
			return false
		}
	}
	return true
}

// FlagCheck is a CTF-style challenge redeemed by submitting a flag string.
type FlagCheck struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Points      int    `yaml:"points"`
	Attempts    int    `yaml:"attempts,omitempty"`
	BoxName     string `yaml:"box_name,omitempty"`
}

// Competition is the configuration-time constant description of one event.
type Competition struct {
	Name             string      `yaml:"name"`
	Redis            RedisConfig `yaml:"redis"`
	CIDR             string      `yaml:"cidr,omitempty"`
	VTEPHost         string      `yaml:"vtep_host,omitempty"`
	DNSServer        string      `yaml:"dns_server,omitempty"`
	TLD              string      `yaml:"tld,omitempty"`
	Duration         int         `yaml:"duration,omitempty"`
	RestoreCooldown  int         `yaml:"restore_cooldown,omitempty"`
	AdminGroup       string      `yaml:"admin_group,omitempty"`
	OpenRegistration bool        `yaml:"open_registration,omitempty"`
	IdentitySources  []string    `yaml:"identity_sources,omitempty"`
	Teams            []Team      `yaml:"teams"`
	Boxes            []Box       `yaml:"boxes"`
	Checks           []Check     `yaml:"checks"`
	FlagChecks       []FlagCheck `yaml:"flag_checks,omitempty"`
}

// DefaultRestoreCooldown applies when restore_cooldown is unset.
const DefaultRestoreCooldown = 10

// RestoreCooldownSeconds returns the configured restore cooldown, or the
// default when unset.
func (c *Competition) RestoreCooldownSeconds() int {
	if c.RestoreCooldown <= 0 {
		return DefaultRestoreCooldown
	}
	return c.RestoreCooldown
}

// TopLevelDomain returns the overlay DNS TLD, defaulting to "hack".
func (c *Competition) TopLevelDomain() string {
	if c.TLD == "" {
		return "hack"
	}
	return c.TLD
}

// BoxFQDN forms the overlay hostname of a box instance.
func (c *Competition) BoxFQDN(boxName, teamName string) string {
	return fmt.Sprintf("%s.%s.%s.%s", boxName, teamName, c.Name, c.TopLevelDomain())
}

// TeamID returns the 1-based id for a team name, or 0 if unknown.
func (c *Competition) TeamID(name string) int {
	for i := range c.Teams {
		if c.Teams[i].Name == name {
			return i + 1
		}
	}
	return 0
}

// TeamByID returns the team for a 1-based id.
func (c *Competition) TeamByID(id int) (*Team, bool) {
	if id < 1 || id > len(c.Teams) {
		return nil, false
	}
	return &c.Teams[id-1], true
}

// CheckByName looks up a service check by name.
func (c *Competition) CheckByName(name string) (*Check, bool) {
	for i := range c.Checks {
		if c.Checks[i].Name == name {
			return &c.Checks[i], true
		}
	}
	return nil, false
}

// FlagCheckByName looks up a flag check by name.
func (c *Competition) FlagCheckByName(name string) (*FlagCheck, bool) {
	for i := range c.FlagChecks {
		if c.FlagChecks[i].Name == name {
			return &c.FlagChecks[i], true
		}
	}
	return nil, false
}

// AppConfig is the top-level configuration document.
type AppConfig struct {
	Competitions []Competition `yaml:"competitions"`
}

// CompetitionByName looks up a competition by name.
func (a *AppConfig) CompetitionByName(name string) (*Competition, bool) {
	for i := range a.Competitions {
		if a.Competitions[i].Name == name {
			return &a.Competitions[i], true
		}
	}
	return nil, false
}

// Load reads the first configuration file found on the search path.
func Load() (*AppConfig, error) {
	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return Parse(data)
	}
	return nil, fmt.Errorf("no configuration found in %v", configPaths)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Competitions) == 0 {
		return nil, fmt.Errorf("config defines no competitions")
	}
	for i := range cfg.Competitions {
		if err := cfg.Competitions[i].validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Competition) validate() error {
	if c.Name == "" {
		return fmt.Errorf("competition has no name")
	}
	if len(c.Teams) == 0 {
		return fmt.Errorf("competition %s has no teams", c.Name)
	}
	seen := make(map[string]bool, len(c.Checks))
	for i := range c.Checks {
		ck := &c.Checks[i]
		if ck.Name == "" {
			return fmt.Errorf("competition %s: check %d has no name", c.Name, i)
		}
		if seen[ck.Name] {
			return fmt.Errorf("competition %s: duplicate check name %q", c.Name, ck.Name)
		}
		seen[ck.Name] = true
		if ck.Interval <= 0 {
			return fmt.Errorf("competition %s: check %s has non-positive interval", c.Name, ck.Name)
		}
	}
	return nil
}
