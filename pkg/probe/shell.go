package probe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/carvesec/carve/pkg/config"
)

// ShellProber writes the spec's script to disk and runs it with the box
// hostname as its first argument. Exit status zero is success.
type ShellProber struct {
	Spec *config.ShellCheckSpec
}

// NewShellProber creates a shell script prober.
func NewShellProber(spec *config.ShellCheckSpec) *ShellProber {
	return &ShellProber{Spec: spec}
}

func (p *ShellProber) timeout() time.Duration {
	if p.Spec.Timeout > 0 {
		return time.Duration(p.Spec.Timeout) * time.Second
	}
	return DefaultTimeout
}

// Probe materializes the script as an executable temp file, runs it, and
// removes it again.
func (p *ShellProber) Probe(ctx context.Context, host string) Result {
	start := time.Now()

	f, err := os.CreateTemp("", "carve-check-*.sh")
	if err != nil {
		return failure(start, "create script: %v", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(p.Spec.Script); err != nil {
		f.Close()
		return failure(start, "write script: %v", err)
	}
	if err := f.Close(); err != nil {
		return failure(start, "close script: %v", err)
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return failure(start, "chmod script: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path, host)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("script failed: %v", err)
		if stderr.Len() > 0 {
			msg = fmt.Sprintf("%s, stderr: %s", msg, truncateOutput(stderr.String()))
		}
		return failure(start, "%s", msg)
	}
	return success(start, "script exit 0, stdout: %s", truncateOutput(stdout.String()))
}

func truncateOutput(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
