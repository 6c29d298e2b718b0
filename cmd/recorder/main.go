// Command recorder runs the voice recorder backend: the HTTP API with its
// background bot loop (serve), one-off vendor imports (sync) and schema
// migrations (migrate).
//
// Configuration comes from the environment; a .env file in the working
// directory is loaded first when present.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-recorder-backend/internal/config"
	"github.com/tbourn/go-recorder-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := rootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("recorder failed")
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "recorder",
		Short:         "Voice recorder ingestion backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
			return nil
		},
	}

	root.AddCommand(
		serveCommand(&cfg),
		syncCommand(&cfg),
		migrateCommand(&cfg),
	)
	return root
}
