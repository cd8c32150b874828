package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vulnverified/subsweep/internal/api"
	"github.com/vulnverified/subsweep/internal/config"
	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/output"
	"github.com/vulnverified/subsweep/internal/wordlist"
)

func newEnumCmd() *cobra.Command {
	var (
		jsonOutput bool
		outFile    string
		noColor    bool
		silent     bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "enum <domain>",
		Short: "Enumerate subdomains of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			// Respect NO_COLOR env var.
			if _, ok := os.LookupEnv("NO_COLOR"); ok {
				noColor = true
			}

			ctx, cancel := signalContext("\nInterrupted, cleaning up...")
			defer cancel()

			showProgress := !jsonOutput && !silent
			console := output.NewConsole(os.Stderr, verbose, !showProgress, noColor)
			if showProgress {
				output.WriteHeader(os.Stderr, noColor)
			}

			result, err := a.coord.Run(ctx, a.cfg.Scan.Request(args[0]), func(e engine.Event) {
				_ = console.Handle(e)
			})
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := writeJSONFile(outFile, result); err != nil {
					return err
				}
			}

			if jsonOutput {
				return output.WriteJSON(os.Stdout, result)
			}

			output.WriteTable(os.Stdout, result, noColor)
			if !silent {
				output.WriteSummary(os.Stdout, result, noColor)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output structured JSON to stdout")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Also write the JSON result to this file")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable terminal colors")
	cmd.Flags().BoolVar(&silent, "silent", false, "Results only, no progress or summary")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every resolved host as it is found")
	return cmd
}

func writeJSONFile(path string, result *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output file: %w", err)
	}
	if err := output.WriteJSON(f, result); err != nil {
		f.Close()
		return fmt.Errorf("output file: %w", err)
	}
	return f.Close()
}

func newPassiveCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "passive <domain>",
		Short: "List certificate-transparency subdomains without DNS queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			domain, err := engine.NormalizeDomain(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext("\nInterrupted")
			defer cancel()

			subs := a.stages.Crtsh.Subdomains(ctx, domain)
			if subs == nil {
				subs = []string{}
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"count": len(subs), "subdomains": subs})
			}
			for _, s := range subs {
				fmt.Fprintln(os.Stdout, s)
			}
			a.log.WithField("count", len(subs)).Info("passive lookup done")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output structured JSON to stdout")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the wordlist presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := os.LookupEnv("NO_COLOR"); ok {
				noColor = true
			}
			output.WritePresets(os.Stdout, wordlist.Presets(), noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable terminal colors")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the enumeration API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext("\nShutting down...")
			defer cancel()

			srv := api.New(a.coord, a.stages.Crtsh, api.Options{
				JobsPerMinute: a.cfg.Server.JobsPerMinute,
				JobBurst:      a.cfg.Server.JobBurst,
			}, a.log)
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}

	config.BindServerFlags(cmd.Flags())
	return cmd
}
