package commands

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"roomkeys/internal/app"
)

var (
	home       string
	passphrase string
	logLevel   string
	appCtx     *app.App
)

func Execute() error {
	return execute(newRootCmd())
}

// execute runs root and closes the app afterwards, whether or not the
// command succeeded.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if appCtx != nil {
		err = errors.Join(err, appCtx.Close())
		appCtx = nil
	}
	if err != nil {
		root.PrintErrln("Error:", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "roomkeys",
		Short:         "Room key store and backup tool for Megolm sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				home = os.Getenv("ROOMKEYS_HOME")
			}
			if home == "" {
				dir, err := app.DefaultHome()
				if err != nil {
					return err
				}
				home = dir
			}

			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			cfg.Home = home
			if passphrase != "" {
				cfg.Passphrase = passphrase
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			log, err := app.NewLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr)
			if err != nil {
				return err
			}
			zerolog.DefaultContextLogger = &log

			a, err := app.Open(cfg, log)
			if err != nil {
				return err
			}
			appCtx = a
			cmd.SetContext(log.WithContext(cmdContext(cmd)))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.roomkeys)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the key store")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		initBackupCmd(),
		receiveKeyCmd(),
		receiveForwardedCmd(),
		decryptCmd(),
		importCmd(),
		exportCmd(),
		backupCmd(),
		restoreCmd(),
		verifyCmd(),
		listCmd(),
		serveMetricsCmd(),
	)

	return root
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
