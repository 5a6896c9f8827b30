package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/grhooks/internal/config"
)

func newCheckCommand() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [manifest-dir]",
		Short: "Load and validate the manifest without serving",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := manifestSource(args)
			if err != nil {
				return err
			}
			return runCheck(cmd.OutOrStdout(), source, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}

func runCheck(w io.Writer, source string, strict bool) error {
	cfg, err := config.Load(source)
	if err != nil {
		return err
	}

	for _, path := range cfg.Fragments {
		hash, err := config.ComputeBlake3Hash(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s  %s\n", config.ShortHash(hash), filepath.Base(path))
	}
	for _, warning := range cfg.Warnings {
		fmt.Fprintf(w, "WARN: %s\n", warning)
	}

	routed := 0
	for _, hook := range cfg.Webhooks {
		if hook.Path != "" {
			routed++
		}
	}
	fmt.Fprintf(w, "%d routes, fingerprint %s\n", routed, config.ShortHash(config.Fingerprint(cfg.Webhooks)))

	if strict && len(cfg.Warnings) > 0 {
		return fmt.Errorf("%d warnings (strict mode)", len(cfg.Warnings))
	}
	fmt.Fprintln(w, "OK")
	return nil
}
