package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tequest-attempts/internal/config"
)

// requirePostgres rejects commands that read or write persisted state when
// only the in-memory store would be available.
func requirePostgres(cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return errPostgresNotConfigured
	}
	return nil
}

var errPostgresNotConfigured = errors.New("postgres url not configured")

// NewLeaderboardCmd prints the leaderboard of a quiz from the configured store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard <quiz-id>",
		Short: "Print the leaderboard of a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := requirePostgres(cfg); err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			lb, err := rt.service.Leaderboard(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tUSER\tBEST\tATTEMPTS\tLAST ATTEMPT")
			for i, e := range lb.Entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", i+1, e.UserID, e.BestScore, e.AttemptsCount, e.LastAttemptAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (0 means the configured page size)")
	return cmd
}
