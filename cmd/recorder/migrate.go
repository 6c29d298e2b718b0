package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-recorder-backend/internal/app"
	"github.com/tbourn/go-recorder-backend/internal/config"
)

func migrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(*cfg)
			if err != nil {
				return err
			}
			log.Info().Str("db", cfg.DBPath).Msg("schema up to date")
			return a.Close()
		},
	}
}
