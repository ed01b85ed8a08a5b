package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carvesec/carve/pkg/scoring"
)

var flagDuration time.Duration

func init() {
	competitionCmd.AddCommand(competitionStartCmd)
	competitionCmd.AddCommand(competitionEndCmd)
	competitionCmd.AddCommand(competitionStateCmd)

	competitionStartCmd.Flags().DurationVar(&flagDuration, "duration", 0,
		"Competition length (0 uses the configured duration, open-ended if unset)")

	apikeyCmd.AddCommand(apikeyGenerateCmd)
	apikeyCmd.AddCommand(apikeyRevokeCmd)
	apikeyCmd.AddCommand(apikeyListCmd)
}

// Competition lifecycle commands
var competitionCmd = &cobra.Command{
	Use:   "competition",
	Short: "Manage the competition lifecycle",
}

var competitionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the competition",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		duration := flagDuration
		if duration == 0 {
			duration = time.Duration(st.Competition().Duration) * time.Second
		}
		state, err := st.Start(context.Background(), duration)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Competition '%s' started\n", st.Competition().Name)
		if state.EndTime != nil {
			fmt.Printf("  Ends: %s\n", time.Unix(*state.EndTime, 0).Format(time.RFC1123))
		} else {
			fmt.Println("  Open-ended; stop with 'carve competition end'")
		}
		return nil
	},
}

var competitionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the competition and freeze scoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.End(context.Background()); err != nil {
			return err
		}
		fmt.Printf("✓ Competition '%s' finished\n", st.Competition().Name)
		return nil
	},
}

var competitionStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show lifecycle state and leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := context.Background()

		state, err := st.State(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Competition: %s\n", st.Competition().Name)
		fmt.Printf("Status:      %s\n", state.Status)
		if state.StartTime != nil {
			fmt.Printf("Started:     %s\n", time.Unix(*state.StartTime, 0).Format(time.RFC1123))
		}
		if state.EndTime != nil {
			fmt.Printf("Ends:        %s\n", time.Unix(*state.EndTime, 0).Format(time.RFC1123))
		}

		board, err := scoring.New(st).Leaderboard(ctx)
		if err != nil {
			return err
		}
		fmt.Println()
		for i, entry := range board {
			fmt.Printf("%3d. %-24s %d\n", i+1, entry.Team, entry.Score)
		}
		return nil
	},
}

// API key commands
var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		key, err := st.GenerateAPIKey(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke KEY",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.RevokeAPIKey(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("✓ Key revoked")
		return nil
	},
}

var apikeyListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List valid API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		keys, err := st.ListAPIKeys(context.Background())
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

// Join code command
var joincodeCmd = &cobra.Command{
	Use:   "joincode TEAM",
	Short: "Generate a 24-hour join code for a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		code, err := st.GenerateJoinCode(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Join code for %s: %s\n", args[0], code)
		return nil
	},
}
