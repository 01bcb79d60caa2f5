package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/hurttlocker/kwgraph/internal/engine"
	"github.com/hurttlocker/kwgraph/internal/scene"
	"github.com/hurttlocker/kwgraph/internal/ui"
	"github.com/hurttlocker/kwgraph/internal/view"
)

// settleTicks bounds the headless layout run; the default cooling schedule
// reaches rest in roughly 300 ticks.
const settleTicks = 400

func viewCmd(opts *rootOptions) *cobra.Command {
	var (
		mode    string
		ref     string
		levels  string
		filter  string
		asJSON  bool
		showAll bool
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Lay out a view of the graph and print the visible nodes",
		Long: "Run the layout headlessly for one view (default, expanded, filtered or all)\n" +
			"and print where each visible keyword lands after the viewport fit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				s, err := engine.New(cmd.Context(), engine.Config{
					Store:   a.store,
					Width:   float64(a.cfg.ViewportWidth.Int(engine.DefaultWidth)),
					Height:  float64(a.cfg.ViewportHeight.Int(engine.DefaultHeight)),
					Logger:  a.logger,
					Metrics: a.metrics,
				})
				if err != nil {
					return err
				}
				defer s.Close()

				if err := applyView(s, mode, ref, levels); err != nil {
					return err
				}
				if filter != "" {
					s.Filter(filter)
				}
				s.Settle(settleTicks)
				sc := s.Scene()
				if asJSON {
					return writeJSON(cmd, sc)
				}
				printScene(cmd, sc, showAll)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "default", "View: default, expanded, filtered or all")
	cmd.Flags().StringVarP(&ref, "keyword", "k", "", "Top-level keyword to expand (expanded mode)")
	cmd.Flags().StringVar(&levels, "levels", "top-level,connected,secondary,isolated", "Roles to show (filtered mode)")
	cmd.Flags().StringVar(&filter, "filter", "", "Dim keywords whose name does not contain this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full scene as JSON")
	cmd.Flags().BoolVar(&showAll, "hidden", false, "Also list hidden keywords")
	return cmd
}

func applyView(s *engine.Session, mode, ref, levels string) error {
	switch mode {
	case "", "default":
		return nil
	case "all":
		s.ShowAll()
		return nil
	case "filtered":
		mask, err := view.ParseLevels(levels)
		if err != nil {
			return err
		}
		s.ApplyLevels(mask)
		return nil
	case "expanded":
		d, err := s.Details(ref)
		if err != nil {
			return err
		}
		if res := s.Click(d.ID); res.State.Mode != view.ModeExpanded {
			return fmt.Errorf("%s is %s, only top-level keywords expand", d.Name, d.Role)
		}
		return nil
	}
	return fmt.Errorf("unknown mode %q", mode)
}

func printScene(cmd *cobra.Command, sc scene.Scene, hidden bool) {
	w := cmd.OutOrStdout()
	rows := make([][]string, 0, len(sc.Nodes))
	visible := 0
	for _, n := range sc.Nodes {
		if n.Visible {
			visible++
		} else if !hidden {
			continue
		}
		p := sc.Transform.Apply(r2.Vec{X: n.X, Y: n.Y})
		rows = append(rows, []string{
			n.Name,
			strconv.FormatFloat(p.X, 'f', 0, 64),
			strconv.FormatFloat(p.Y, 'f', 0, 64),
			strconv.FormatFloat(n.Radius, 'f', 1, 64),
			ui.StatusIcon(n.Visible),
			ui.Role(n.Role),
		})
	}
	edges := 0
	for _, e := range sc.Edges {
		if e.Visible {
			edges++
		}
	}

	fmt.Fprintf(w, "  %s %s  %s\n\n", ui.Info.Sprint("View"), sc.State.Mode, ui.Subtle.Sprintf("%.0fx%.0f, zoom %.2f", sc.Width, sc.Height, sc.Transform.K))
	if len(rows) == 0 {
		ui.Subtle.Fprintln(w, "  Nothing visible.")
		return
	}
	ui.Table(w, []string{"NAME", "X", "Y", "R", "SHOWN", "ROLE"}, rows)
	fmt.Fprintf(w, "\n  %d of %d keywords visible, %d relations\n", visible, len(sc.Nodes), edges)
}
