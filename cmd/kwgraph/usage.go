package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/kwgraph/internal/ui"
	"github.com/hurttlocker/kwgraph/internal/usage"
)

func trackCmd(opts *rootOptions) *cobra.Command {
	var (
		ref          string
		usageContext string
	)
	cmd := &cobra.Command{
		Use:   "track [text...]",
		Short: "Record keyword mentions found in text, or one keyword with --keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ref == "" && len(args) == 0 {
				return fmt.Errorf("give text to scan or --keyword")
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				w := cmd.OutOrStdout()
				if ref != "" {
					k, err := a.usage.Track(cmd.Context(), ref, usageContext)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s %s used %d times\n", ui.StatusIcon(true), k.Label(), k.Uses)
					return nil
				}
				found, err := a.usage.TrackText(cmd.Context(), strings.Join(args, " "), usageContext)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					ui.Subtle.Fprintln(w, "  No keywords mentioned.")
					return nil
				}
				fmt.Fprintf(w, "%s Tracked %s\n", ui.StatusIcon(true), strings.Join(found, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&ref, "keyword", "k", "", "Track a single keyword by name or id")
	cmd.Flags().StringVar(&usageContext, "context", usage.DefaultContext, "Where the mention happened")
	return cmd
}

func usageCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "usage",
		Aliases: []string{"analytics"},
		Short:   "Show keyword usage analytics",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				an := a.usage.Analytics(cmd.Context())
				if asJSON {
					return writeJSON(cmd, an)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "  %s %d keywords, %d uses, cost %.2f\n\n",
					ui.Info.Sprint("Usage"), an.TotalKeywords, an.TotalUses, an.TotalCost)
				rows := make([][]string, 0, len(an.TopKeywords))
				for i, k := range an.TopKeywords {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						k.Name,
						strconv.Itoa(k.Uses),
						strconv.FormatFloat(k.Cost, 'f', 2, 64),
					})
				}
				ui.Table(w, []string{"#", "KEYWORD", "USES", "COST"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
