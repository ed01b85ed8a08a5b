package probe

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/carvesec/carve/pkg/config"
)

// HTTPProber requests a path on the box and matches status and body.
type HTTPProber struct {
	Spec   *config.HTTPCheckSpec
	Client *http.Client
}

// NewHTTPProber creates an HTTP prober with the default timeout.
func NewHTTPProber(spec *config.HTTPCheckSpec) *HTTPProber {
	return &HTTPProber{
		Spec:   spec,
		Client: &http.Client{Timeout: DefaultTimeout},
	}
}

// Probe requests http://{host}{path} and succeeds when the status code
// equals the expected code and the body matches the spec regex.
func (p *HTTPProber) Probe(ctx context.Context, host string) Result {
	start := time.Now()

	re, err := regexp.Compile(p.Spec.Regex)
	if err != nil {
		return failure(start, "invalid body regex %q: %v", p.Spec.Regex, err)
	}

	method := string(p.Spec.Method)
	if method == "" {
		method = string(config.MethodGet)
	}

	var body io.Reader
	if p.Spec.Body != "" {
		body = strings.NewReader(p.Spec.Body)
	}

	url := "http://" + host + p.Spec.URL
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return failure(start, "build request: %v", err)
	}
	if method == string(config.MethodPost) {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return failure(start, "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(start, "read response: %v", err)
	}

	if resp.StatusCode != p.Spec.Code {
		return failure(start, "HTTP %d (expected %d)", resp.StatusCode, p.Spec.Code)
	}
	if !re.Match(data) {
		return failure(start, "HTTP %d, body did not match %q", resp.StatusCode, p.Spec.Regex)
	}
	return success(start, "HTTP %d, body matched", resp.StatusCode)
}
