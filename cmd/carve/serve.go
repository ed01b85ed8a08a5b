package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/dns"
	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/metrics"
	"github.com/carvesec/carve/pkg/overlay"
	"github.com/carvesec/carve/pkg/scheduler"
	"github.com/carvesec/carve/pkg/scoring"
	"github.com/carvesec/carve/pkg/store"
)

var (
	flagHealthAddr  string
	flagIface       string
	flagDNSAddr     string
	flagDNSUpstream string
)

func init() {
	schedulerCmd.Flags().StringVar(&flagHealthAddr, "health-addr", ":8080",
		"Address for the health and metrics endpoints")
	vtepCmd.Flags().StringVar(&flagIface, "interface", "eth0",
		"Underlay interface carrying VXLAN traffic")
	dnsCmd.Flags().StringVar(&flagDNSAddr, "listen", dns.DefaultListenAddr,
		"Address for the DNS listener")
	dnsCmd.Flags().StringVar(&flagDNSUpstream, "upstream", dns.DefaultUpstream,
		"Resolver for queries outside the overlay zones")
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the check engine for every configured competition",
	Long: `Run one check scheduler per configured competition, recording probe
outcomes and scoring ledger events through the broker. Health and
Prometheus metrics are served over HTTP.

The process exits non-zero only when the configuration cannot be loaded
or a broker is unreachable at boot; transient broker failures during
operation are retried by the workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("scheduler", true, "running")

		var wg sync.WaitGroup
		for i := range cfg.Competitions {
			comp := &cfg.Competitions[i]
			st, err := store.New(comp)
			if err != nil {
				return err
			}
			defer st.Close()

			logger := log.WithCompetition(comp.Name)

			sched := scheduler.New(st, scheduler.NewDNSResolver(comp.DNSServer))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("Scheduler stopped")
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				rankingLoop(ctx, st)
			}()

			collector := metrics.NewCollector(comp.Name, competitionStatus(st))
			collector.Start()
			defer collector.Stop()

			logger.Info().
				Int("checks", len(comp.Checks)).
				Int("teams", len(comp.Teams)).
				Msg("Scheduler started")
		}

		srv := serveHTTP(flagHealthAddr)
		defer srv.Close()

		waitForSignal()
		log.Info("Shutting down")
		cancel()
		wg.Wait()
		return nil
	},
}

// rankingLoop refreshes the leaderboard and emits rank-change toasts
// while the competition is active.
func rankingLoop(ctx context.Context, st *store.Store) {
	proj := scoring.New(st)
	logger := log.WithCompetition(st.Competition().Name)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			state, err := st.State(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to read competition state")
				continue
			}
			if state.Status != store.StatusActive {
				continue
			}
			if _, err := proj.UpdateRankings(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to update rankings")
			}
		case <-ctx.Done():
			return
		}
	}
}

// competitionStatus samples the lifecycle as a gauge value and doubles
// as the broker health probe.
func competitionStatus(st *store.Store) metrics.StatusFunc {
	return func(ctx context.Context) (float64, error) {
		state, err := st.State(ctx)
		if err != nil {
			return 0, err
		}
		switch state.Status {
		case store.StatusActive:
			return 1, nil
		case store.StatusFinished:
			return 2, nil
		default:
			return 0, nil
		}
	}
}

// serveHTTP starts the health and metrics endpoints in the background.
func serveHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Health endpoint failed", err)
		}
	}()
	return srv
}

var vtepCmd = &cobra.Command{
	Use:   "vtep",
	Short: "Program the host end of the team overlay networks",
	Long: `Allocate per-team subnets from the competition CIDR, build the VXLAN
devices and SNAT rules, publish the subnet map, and keep kernel FDB
entries in sync with sidecar advertisements. Egress forwarding follows
the competition lifecycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		comp := st.Competition()

		plan, err := overlay.PlanNetwork(comp.CIDR, comp.Teams)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		v := overlay.NewVTEP(st, plan, flagIface)
		if err := v.Setup(ctx); err != nil {
			return err
		}
		go v.SyncFDB(ctx)
		go forwardingLoop(ctx, st, v)

		metrics.SetVersion(Version)
		metrics.RegisterComponent("broker", true, "connected")
		metrics.RegisterComponent("scheduler", true, "not applicable")
		srv := serveHTTP(":8000")
		defer srv.Close()

		fmt.Printf("VTEP running for %s (%d teams). Press Ctrl+C to stop.\n",
			comp.Name, len(plan.Teams))
		waitForSignal()
		return nil
	},
}

// forwardingLoop toggles NAT egress on competition lifecycle events.
func forwardingLoop(ctx context.Context, st *store.Store, v *overlay.VTEP) {
	logger := log.WithCompetition(st.Competition().Name)
	for {
		state, err := st.WaitForCompetitionEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("Competition event wait failed")
			time.Sleep(time.Second)
			continue
		}
		enabled := state.Status == store.StatusActive
		if err := v.SetForwarding(enabled); err != nil {
			logger.Warn().Err(err).Msg("Failed to toggle forwarding")
		} else {
			logger.Info().Bool("forwarding", enabled).Str("status", string(state.Status)).
				Msg("Egress updated for lifecycle event")
		}
	}
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Serve the overlay naming scheme",
	Long: `Answer A queries for "{box}.{team}.{competition}.{tld}" names from the
box addresses recorded in the broker, one zone per configured
competition. Everything else is forwarded upstream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		stores := make([]*store.Store, 0, len(cfg.Competitions))
		for i := range cfg.Competitions {
			st, err := store.New(&cfg.Competitions[i])
			if err != nil {
				return err
			}
			defer st.Close()
			stores = append(stores, st)
		}

		srv := dns.NewServer(stores, &dns.Config{
			ListenAddr: flagDNSAddr,
			Upstream:   flagDNSUpstream,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop()

		fmt.Printf("DNS server listening on %s. Press Ctrl+C to stop.\n", srv.Addr())
		waitForSignal()
		return nil
	},
}

var sidecarCmd = &cobra.Command{
	Use:   "sidecar",
	Short: "Bridge one VM into its team overlay",
	Long: `Run next to a single VM: build the vxlan0 and br0 pair from the
VXLAN_ID, CIDR, VTEP_HOST and DOMAIN environment variables and keep
this box's MAC advertised in the forwarding database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sidecarCfg, err := overlay.SidecarFromEnv()
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sc := overlay.NewSidecar(st, sidecarCfg)
		if err := sc.Setup(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go sc.Advertise(ctx)

		metrics.SetVersion(Version)
		metrics.RegisterComponent("broker", true, "connected")
		metrics.RegisterComponent("scheduler", true, "not applicable")
		srv := serveHTTP(":8000")
		defer srv.Close()

		waitForSignal()
		return nil
	},
}
