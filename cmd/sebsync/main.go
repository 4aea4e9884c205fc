package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sebsync/internal/config"
	"sebsync/internal/core/service"
	"sebsync/internal/report"
)

const epilog = `Statuses reported for ebooks:

  N: new (found in the catalog but not locally; placed in downloads)
  U: update (newer revision in the catalog; replaced in place)
  X: extraneous (local ebook no longer in the catalog; report only)
  E: failed action

An extraneous ebook can occur when the catalog changes the identifier of a
previously published ebook. It is rare and such files are generally safe to
delete.`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "sebsync",
		Short:        "Synchronize the Standard Ebooks catalog with a local EPUB collection",
		Long:         "Synchronize the Standard Ebooks catalog with a local EPUB collection.\n\n" + epilog,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("email", "", "email address to authenticate with Standard Ebooks")
	flags.String("opds", config.DefaultOPDSURL, "URL of the Standard Ebooks OPDS catalog")
	flags.String("books", "", "directory where local books are stored (default $HOME/Books)")
	flags.String("downloads", "", "directory where new ebooks are downloaded (default $HOME/Downloads)")
	flags.Bool("dry-run", false, "perform a trial run with no changes made")
	flags.Bool("quiet", false, "suppress non-error messages")
	flags.Bool("verbose", false, "increase verbosity")
	flags.Int("concurrency", 4, "maximum concurrent downloads")
	flags.Int("delay-ms", 0, "politeness delay between download starts, in milliseconds")
	flags.Int64("max-size-mb", 50, "per-download size cap in megabytes")

	// Every flag is also settable as SEBSYNC_<FLAG> in the environment.
	_ = v.BindPFlags(flags)

	return cmd
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	log := newLogger(cfg)

	src := service.NewCatalogSource(cfg, log)
	scanner := service.NewLibraryScanner(cfg, log)
	exec := service.NewExecutor(src, cfg.DownloadsDir, cfg.DryRun, log)
	rep := report.New(cmd.OutOrStdout(), cfg.Quiet)

	svc := service.NewSyncService(cfg, src, scanner, exec, rep, log)

	summary, err := svc.Run(cmd.Context())
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("%d of the planned actions failed", len(summary.Failures))
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Quiet {
		level = zerolog.WarnLevel
	}
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
