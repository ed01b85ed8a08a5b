package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carvesec/carve/pkg/config"
)

func TestShellProbeSuccess(t *testing.T) {
	p := NewShellProber(&config.ShellCheckSpec{
		Script: "#!/bin/sh\ntest \"$1\" = \"box.example\"\n",
	})
	res := p.Probe(context.Background(), "box.example")
	assert.True(t, res.Success, res.Message)
	assert.Positive(t, res.Duration)
}

func TestShellProbeFailure(t *testing.T) {
	p := NewShellProber(&config.ShellCheckSpec{
		Script: "#!/bin/sh\necho \"cannot reach $1\" >&2\nexit 1\n",
	})
	res := p.Probe(context.Background(), "box.example")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "cannot reach box.example")
}

func TestShellProbeTimeout(t *testing.T) {
	p := NewShellProber(&config.ShellCheckSpec{
		Script:  "#!/bin/sh\nsleep 30\n",
		Timeout: 1,
	})
	res := p.Probe(context.Background(), "box.example")
	assert.False(t, res.Success)
}
