package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-recorder-backend/internal/app"
	"github.com/tbourn/go-recorder-backend/internal/config"
)

func syncCommand(cfg *config.Config) *cobra.Command {
	var users []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import vendor recordings for the given users once",
		Example: `  recorder sync --user 3f0c6f1e-5b7a-4c1e-9c39-2d5c0b8f4a11
  recorder sync -u <id> -u <id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(users) == 0 {
				return errors.New("at least one --user is required")
			}
			a, err := app.Open(*cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var failed int
			for _, id := range users {
				report, err := a.Sync.SyncUser(cmd.Context(), id)
				ev := log.Info()
				if err != nil {
					failed++
					ev = log.Error().Err(err)
				}
				if report != nil {
					ev = ev.Int("listed", report.Listed).
						Int("imported", report.Imported).
						Int("duplicates", report.Duplicates).
						Int("failed", report.Failed)
				}
				ev.Str("user_id", id).Msg("vendor sync finished")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d syncs failed", failed, len(users))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&users, "user", "u", nil, "user id to sync (repeatable)")
	return cmd
}
