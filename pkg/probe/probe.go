package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/carvesec/carve/pkg/config"
)

// DefaultTimeout bounds a single probe unless the spec overrides it.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of one probe against one host.
type Result struct {
	Success  bool
	Message  string
	Duration time.Duration
}

// Prober executes a check against a resolved host address.
type Prober interface {
	// Probe runs the check. It never returns an error; execution
	// problems are folded into an unsuccessful Result.
	Probe(ctx context.Context, host string) Result
}

// New builds the Prober for a check spec variant.
func New(spec *config.CheckSpec) (Prober, error) {
	switch spec.Type {
	case "http":
		return NewHTTPProber(spec.HTTP), nil
	case "icmp":
		return NewICMPProber(spec.ICMP), nil
	case "ssh":
		return NewSSHProber(spec.SSH), nil
	case "nix":
		return NewShellProber(spec.Shell), nil
	default:
		return nil, fmt.Errorf("unknown check type %q", spec.Type)
	}
}

func failure(start time.Time, format string, args ...interface{}) Result {
	return Result{
		Success:  false,
		Message:  fmt.Sprintf(format, args...),
		Duration: time.Since(start),
	}
}

func success(start time.Time, format string, args ...interface{}) Result {
	return Result{
		Success:  true,
		Message:  fmt.Sprintf(format, args...),
		Duration: time.Since(start),
	}
}
