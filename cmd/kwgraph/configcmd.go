package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/kwgraph/internal/config"
	"github.com/hurttlocker/kwgraph/internal/ui"
)

func configCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show resolved settings and where each one came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, cfg)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "  %s %s\n\n", ui.Info.Sprint("Config file"), cfg.ConfigPath)
			entries := []struct {
				key string
				v   config.ResolvedValue
			}{
				{"backend", cfg.Backend},
				{"db_path", cfg.DBPath},
				{"namespace", cfg.Namespace},
				{"poll_interval", cfg.PollInterval},
				{"nats.url", cfg.NATSURL},
				{"nats.bucket", cfg.NATSBucket},
				{"http.host", cfg.HTTPHost},
				{"http.port", cfg.HTTPPort},
				{"viewport.width", cfg.ViewportWidth},
				{"viewport.height", cfg.ViewportHeight},
				{"layout.link_distance", cfg.LinkDistance},
				{"layout.charge", cfg.Charge},
				{"log_level", cfg.LogLevel},
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				value, source := e.v.Value, string(e.v.Source)
				if source == "" {
					value, source = "-", "unset"
				}
				rows = append(rows, []string{e.key, value, source, e.v.From})
			}
			ui.Table(w, []string{"KEY", "VALUE", "SOURCE", "FROM"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
