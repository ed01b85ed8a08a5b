package overlay

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/metrics"
)

// Broker is the slice of the shared-state store the overlay programs
// against. Implemented by store.Store.
type Broker interface {
	Competition() *config.Competition
	SetSubnets(ctx context.Context, entries map[string]string) error
	FDBEntries(ctx context.Context, domain string) (map[string]string, error)
	SetFDBEntry(ctx context.Context, domain, mac, ip string) error
}

// vxlanPort is the IANA-assigned VXLAN UDP port.
const vxlanPort = 4789

// fdbSyncInterval keeps kernel FDB programming comfortably inside the
// store's 20 second per-entry TTL.
const fdbSyncInterval = 5 * time.Second

// runner executes a host command; swapped by tests.
type runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", name, err, string(output))
	}
	return nil
}

// VTEP programs the competition host's end of the overlay: one VXLAN
// device and SNAT rule per team, plus kernel FDB entries learned from
// the store.
type VTEP struct {
	st    Broker
	plan  *NetworkPlan
	iface string
	run   runner
}

// NewVTEP creates a VTEP over the host's primary interface.
func NewVTEP(st Broker, plan *NetworkPlan, iface string) *VTEP {
	return &VTEP{st: st, plan: plan, iface: iface, run: execRunner}
}

// Setup builds every team device, installs SNAT, enables forwarding and
// publishes the subnet map. Safe to re-run; stale devices are removed
// first.
func (v *VTEP) Setup(ctx context.Context) error {
	logger := log.WithComponent("vtep")

	for _, team := range v.plan.Teams {
		dev := team.Device()

		// Remove any leftover device from a previous run.
		_ = v.run("ip", "link", "delete", dev)

		if err := v.run("ip", "link", "add", dev,
			"type", "vxlan",
			"id", fmt.Sprintf("%d", team.VXLANID),
			"dev", v.iface,
			"dstport", fmt.Sprintf("%d", vxlanPort)); err != nil {
			return fmt.Errorf("create %s: %w", dev, err)
		}
		if err := v.run("ip", "link", "set", dev, "up"); err != nil {
			return fmt.Errorf("bring up %s: %w", dev, err)
		}

		gw, err := team.Gateway()
		if err != nil {
			return err
		}
		if err := v.run("ip", "addr", "add", gw+"/24", "dev", dev); err != nil {
			return fmt.Errorf("assign gateway to %s: %w", dev, err)
		}

		if err := v.run("iptables", snatRule(team, v.plan.Management)...); err != nil {
			return fmt.Errorf("install snat for %s: %w", team.Name, err)
		}
		logger.Info().Str("device", dev).Str("subnet", team.CIDR).Msg("Team overlay ready")
	}

	if err := v.SetForwarding(true); err != nil {
		return err
	}

	if err := v.st.SetSubnets(ctx, v.plan.Entries()); err != nil {
		return err
	}
	logger.Info().Int("teams", len(v.plan.Teams)).Msg("Subnet map published")
	return nil
}

// SetForwarding toggles IPv4 forwarding, gating overlay egress on the
// competition lifecycle.
func (v *VTEP) SetForwarding(enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	if err := v.run("sysctl", "-w", "net.ipv4.ip_forward="+value); err != nil {
		return fmt.Errorf("toggle ip forwarding: %w", err)
	}
	return nil
}

// SyncFDB runs until canceled, programming kernel FDB entries for every
// team domain from the store's advertisements.
func (v *VTEP) SyncFDB(ctx context.Context) {
	logger := log.WithComponent("vtep")
	ticker := time.NewTicker(fdbSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, team := range v.plan.Teams {
				if err := v.syncTeamFDB(ctx, team); err != nil {
					logger.Warn().Err(err).Str("team", team.Name).Msg("FDB sync failed")
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (v *VTEP) syncTeamFDB(ctx context.Context, team SubnetEntry) error {
	comp := v.st.Competition()
	var lastErr error
	for _, box := range comp.Boxes {
		domain := comp.BoxFQDN(box.Name, team.Name)
		entries, err := v.st.FDBEntries(ctx, domain)
		if err != nil {
			lastErr = err
			continue
		}
		metrics.FDBEntriesTotal.WithLabelValues(domain).Set(float64(len(entries)))
		for mac, ip := range entries {
			if err := v.run("bridge", "fdb", "replace", mac,
				"dev", team.Device(), "dst", ip); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}
