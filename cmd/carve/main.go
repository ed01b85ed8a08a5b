package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/store"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagCompetition string
	flagLogLevel    string
	flagJSONLogs    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "carve",
	Short: "Carve - Scoring engine for attack/defense security competitions",
	Long: `Carve runs the server side of an attack/defense security competition:
periodic service checks against every team's boxes, a scoring ledger,
flag challenges, and a per-team VXLAN overlay, all coordinated through
a Redis broker.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{
			Level:      log.Level(flagLogLevel),
			JSONOutput: flagJSONLogs,
		})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Carve version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagCompetition, "competition", "",
		"Competition to operate on (defaults to the first configured)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false,
		"Emit logs as JSON")

	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(vtepCmd)
	rootCmd.AddCommand(sidecarCmd)
	rootCmd.AddCommand(dnsCmd)
	rootCmd.AddCommand(competitionCmd)
	rootCmd.AddCommand(apikeyCmd)
	rootCmd.AddCommand(joincodeCmd)
}

// selectedCompetition resolves the --competition flag against the
// loaded configuration.
func selectedCompetition(cfg *config.AppConfig) (*config.Competition, error) {
	if flagCompetition == "" {
		return &cfg.Competitions[0], nil
	}
	comp, ok := cfg.CompetitionByName(flagCompetition)
	if !ok {
		return nil, fmt.Errorf("unknown competition %q", flagCompetition)
	}
	return comp, nil
}

// openStore loads the configuration and connects to the selected
// competition's broker.
func openStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	comp, err := selectedCompetition(cfg)
	if err != nil {
		return nil, err
	}
	return store.New(comp)
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
