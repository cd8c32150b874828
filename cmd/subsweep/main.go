package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vulnverified/subsweep/internal/api"
	"github.com/vulnverified/subsweep/internal/config"
	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/logx"
	"github.com/vulnverified/subsweep/internal/output"
	"github.com/vulnverified/subsweep/internal/recon"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	output.Version = version
	api.Version = version

	rootCmd := &cobra.Command{
		Use:           "subsweep",
		Short:         "Enumerate and validate subdomains",
		Long:          "Subdomain enumeration: wordlist and certificate-transparency candidates, concurrent DNS resolution and HTTP validation of every resolved host.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newEnumCmd(),
		newPassiveCmd(),
		newPresetsCmd(),
		newServeCmd(),
	)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("subsweep {{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg    config.Config
	log    *logrus.Logger
	stages *recon.Stages
	coord  *engine.Coordinator
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, err := logx.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	if cfg.Scan.UserAgent == config.Default().Scan.UserAgent {
		cfg.Scan.UserAgent = fmt.Sprintf("subsweep/%s (+https://github.com/vulnverified/subsweep)", version)
	}

	stages := recon.NewStages(recon.Options{
		WordlistDir:        cfg.Scan.WordlistDir,
		UserAgent:          cfg.Scan.UserAgent,
		Resolvers:          cfg.Scan.Resolvers,
		CrtshURL:           cfg.Scan.CrtshURL,
		HTTPRequestTimeout: cfg.Scan.HTTPRequestTimeout,
		HTTPHostTimeout:    cfg.Scan.HTTPHostTimeout,
	}, log)

	coord := engine.NewCoordinator(stages.Engine(), engine.Options{
		HTTPConcurrency: cfg.Scan.HTTPConcurrency,
		EventBuffer:     cfg.Server.EventBuffer,
	}, log)

	return &app{cfg: cfg, log: log, stages: stages, coord: coord}, nil
}

// signalContext returns a context cancelled on the first Ctrl+C.
func signalContext(msg string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, msg)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
