package overlay

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/carvesec/carve/pkg/log"
)

// advertiseInterval refreshes the sidecar's FDB advertisement well
// inside the store's 20 second TTL.
const advertiseInterval = 5 * time.Second

// SidecarConfig is read from the sidecar container's environment.
type SidecarConfig struct {
	VXLANID  int    // VXLAN_ID
	CIDR     string // CIDR, the team's /24
	VTEPHost string // VTEP_HOST, underlay address of the competition host
	Domain   string // DOMAIN, the box FQDN this sidecar advertises under
}

// SidecarFromEnv reads the sidecar configuration from the environment.
func SidecarFromEnv() (SidecarConfig, error) {
	var cfg SidecarConfig

	raw := os.Getenv("VXLAN_ID")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return cfg, fmt.Errorf("parse VXLAN_ID %q: %w", raw, err)
	}
	cfg.VXLANID = id

	cfg.CIDR = os.Getenv("CIDR")
	if _, _, err := net.ParseCIDR(cfg.CIDR); err != nil {
		return cfg, fmt.Errorf("parse CIDR %q: %w", cfg.CIDR, err)
	}

	cfg.VTEPHost = os.Getenv("VTEP_HOST")
	if cfg.VTEPHost == "" {
		return cfg, fmt.Errorf("VTEP_HOST is not set")
	}
	cfg.Domain = os.Getenv("DOMAIN")
	if cfg.Domain == "" {
		return cfg, fmt.Errorf("DOMAIN is not set")
	}
	return cfg, nil
}

// Sidecar bridges one VM into its team's overlay. It builds a vxlan0
// device toward the VTEP, enslaves it to a local br0 the VM's tap
// joins, and advertises the bridge MAC into the forwarding database.
type Sidecar struct {
	st  Broker
	cfg SidecarConfig
	run runner

	hwAddr func(device string) (string, error)
}

// NewSidecar creates a sidecar from its environment configuration.
func NewSidecar(st Broker, cfg SidecarConfig) *Sidecar {
	return &Sidecar{st: st, cfg: cfg, run: execRunner, hwAddr: interfaceHWAddr}
}

func interfaceHWAddr(device string) (string, error) {
	iface, err := net.InterfaceByName(device)
	if err != nil {
		return "", fmt.Errorf("look up %s: %w", device, err)
	}
	return iface.HardwareAddr.String(), nil
}

// Setup builds the vxlan0 and br0 pair. Safe to re-run.
func (s *Sidecar) Setup() error {
	logger := log.WithComponent("sidecar")
	_ = s.run("ip", "link", "delete", "vxlan0")

	if err := s.run("ip", "link", "add", "vxlan0",
		"type", "vxlan",
		"id", strconv.Itoa(s.cfg.VXLANID),
		"remote", s.cfg.VTEPHost,
		"dstport", fmt.Sprintf("%d", vxlanPort)); err != nil {
		return fmt.Errorf("create vxlan0: %w", err)
	}
	if err := s.run("ip", "link", "add", "br0", "type", "bridge"); err != nil {
		// br0 may already exist from a previous run.
		logger.Debug().Err(err).Msg("Bridge already present")
	}
	if err := s.run("ip", "link", "set", "vxlan0", "master", "br0"); err != nil {
		return fmt.Errorf("enslave vxlan0: %w", err)
	}
	if err := s.run("ip", "link", "set", "vxlan0", "up"); err != nil {
		return fmt.Errorf("bring up vxlan0: %w", err)
	}
	if err := s.run("ip", "link", "set", "br0", "up"); err != nil {
		return fmt.Errorf("bring up br0: %w", err)
	}
	logger.Info().
		Int("vxlan_id", s.cfg.VXLANID).
		Str("domain", s.cfg.Domain).
		Msg("Sidecar overlay ready")
	return nil
}

// Advertise refreshes this sidecar's FDB entry until the context is
// canceled.
func (s *Sidecar) Advertise(ctx context.Context) {
	logger := log.WithComponent("sidecar")
	ticker := time.NewTicker(advertiseInterval)
	defer ticker.Stop()

	for {
		if err := s.advertiseOnce(ctx); err != nil {
			logger.Warn().Err(err).Msg("FDB advertisement failed")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sidecar) advertiseOnce(ctx context.Context) error {
	mac, err := s.hwAddr("br0")
	if err != nil {
		return err
	}
	ip, _, err := net.ParseCIDR(s.cfg.CIDR)
	if err != nil {
		return fmt.Errorf("parse sidecar cidr: %w", err)
	}
	return s.st.SetFDBEntry(ctx, s.cfg.Domain, mac, ip.String())
}
