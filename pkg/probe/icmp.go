package probe

import (
	"context"
	"os/exec"
	"time"

	"github.com/carvesec/carve/pkg/config"
)

// ICMPProber sends a single echo request via the system ping binary.
type ICMPProber struct {
	Spec *config.ICMPCheckSpec
}

// NewICMPProber creates an ICMP prober.
func NewICMPProber(spec *config.ICMPCheckSpec) *ICMPProber {
	return &ICMPProber{Spec: spec}
}

// Probe runs one echo with a 5 second deadline. An expected code of
// zero means the echo must succeed; any other code inverts the check
// and expects the host to be unreachable.
func (p *ICMPProber) Probe(ctx context.Context, host string) Result {
	start := time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	err := exec.CommandContext(pingCtx, "ping", "-c", "1", "-W", "5", host).Run()
	reachable := err == nil
	expectReachable := p.Spec.Code == 0

	if reachable == expectReachable {
		if reachable {
			return success(start, "echo reply from %s", host)
		}
		return success(start, "%s unreachable as expected", host)
	}
	if reachable {
		return failure(start, "%s reachable, expected unreachable", host)
	}
	return failure(start, "no echo reply from %s: %v", host, err)
}
