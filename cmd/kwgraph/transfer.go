package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/ui"
)

func exportCmd(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the graph as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				g := a.store.Graph(cmd.Context())
				if outPath == "" || outPath == "-" {
					return keyword.EncodeTOML(cmd.OutOrStdout(), g)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				if err := keyword.EncodeTOML(f, g); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d keywords to %s\n", ui.StatusIcon(true), len(g.Keywords), outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func importCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file.toml>",
		Short: "Replace the graph with one read from TOML",
		Long: "Replace the stored graph with keywords and relations read from a TOML file\n" +
			"in the format written by export. Use - to read stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNeedsConfirm
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			g, err := keyword.DecodeTOML(r)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.store.Replace(cmd.Context(), g); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %d keywords and %d relations\n",
					ui.StatusIcon(true), len(g.Keywords), len(g.Relations))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm replacing the current graph")
	return cmd
}
