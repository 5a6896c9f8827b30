package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/grhooks/internal/config"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes [manifest-dir]",
		Short: "Print the merged routing table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := manifestSource(args)
			if err != nil {
				return err
			}
			cfg, err := config.Load(source)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			renderRoutes(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func renderRoutes(w io.Writer, cfg *config.Config) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PATH", "ORIGIN", "EVENTS", "SECRET", "TIMEOUT", "TARGET").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, hook := range cfg.Webhooks {
		path := hook.Path
		if path == "" {
			path = "(unrouted)"
		}
		events := "*"
		if len(hook.Events) > 0 {
			events = strings.Join(hook.Events, ",")
		}
		secret := "no"
		if hook.HasSecret() {
			secret = "yes"
		}
		timeout := "default"
		if hook.Timeout > 0 {
			timeout = hook.Timeout.String()
		}
		t.Row(path, hook.Origin.String(), events, secret, timeout, hook.Target())
	}

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d definitions from %d fragments, fingerprint %s",
		len(cfg.Webhooks), len(cfg.Fragments), config.ShortHash(config.Fingerprint(cfg.Webhooks)))))
}
