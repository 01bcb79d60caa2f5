package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/ui"
)

func listCmd(opts *rootOptions) *cobra.Command {
	var (
		roleFilter string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "classify"},
		Short:   "List keywords with their degree and derived role",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			want, err := keyword.ParseRole(roleFilter)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				nodes := keyword.Classify(a.store.Graph(cmd.Context()))
				out := nodes[:0:0]
				maxDegree := 0
				for _, n := range nodes {
					if n.Degree > maxDegree {
						maxDegree = n.Degree
					}
					if want == keyword.RoleNone || n.Role == want {
						out = append(out, n)
					}
				}
				if asJSON {
					return writeJSON(cmd, out)
				}

				w := cmd.OutOrStdout()
				if len(out) == 0 {
					ui.Subtle.Fprintln(w, "  No keywords.")
					return nil
				}
				rows := make([][]string, 0, len(out))
				for _, n := range out {
					rows = append(rows, []string{
						n.Label(),
						strconv.Itoa(n.Degree),
						strconv.FormatFloat(n.Weight, 'f', -1, 64),
						strconv.Itoa(n.Uses),
						ui.Role(n.Role),
					})
				}
				ui.Table(w, []string{"NAME", "DEGREE", "WEIGHT", "USES", "ROLE"}, rows)
				fmt.Fprintf(w, "\n  %s max degree %d, top-level at %d+\n",
					ui.Subtle.Sprint(fmt.Sprintf("%d keywords ·", len(out))), maxDegree, keyword.Threshold(maxDegree))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleFilter, "role", "", "Only show keywords with this role")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func addCmd(opts *rootOptions) *cobra.Command {
	var weight float64
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				k, err := a.store.AddKeyword(cmd.Context(), args[0], weight)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s %s\n", ui.StatusIcon(true), ui.Brand.Sprint(k.Label()), ui.Subtle.Sprint(k.ID))
				return nil
			})
		},
	}
	cmd.Flags().Float64VarP(&weight, "weight", "w", keyword.DefaultWeight, "Keyword weight")
	return cmd
}

func removeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <keyword>",
		Aliases: []string{"rm"},
		Short:   "Remove a keyword and its relations",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				k, err := a.store.RemoveKeyword(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", ui.StatusIcon(true), k.Label())
				return nil
			})
		},
	}
}

func renameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rename <keyword> <new-name>",
		Aliases: []string{"relabel"},
		Short:   "Rename a keyword; its relations follow",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				k, err := a.store.RelabelKeyword(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %s\n", ui.StatusIcon(true), args[0], ui.Brand.Sprint(k.Label()))
				return nil
			})
		},
	}
}

func roleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "role <keyword> <role>",
		Short: "Set a keyword's role hint (top-level, connected, secondary, isolated or none)",
		Long: "Set the role hint shown next to a keyword. The displayed role is always\n" +
			"derived from the graph; the hint is informational.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args[1]
			if strings.EqualFold(raw, "none") {
				raw = ""
			}
			role, err := keyword.ParseRole(raw)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				k, err := a.store.SetRoleHint(cmd.Context(), args[0], role)
				if err != nil {
					return err
				}
				hint := "none"
				if k.RoleHint != keyword.RoleNone {
					hint = ui.Role(k.RoleHint)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s role hint: %s\n", ui.StatusIcon(true), k.Label(), hint)
				return nil
			})
		},
	}
}

func weightCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "weight <keyword> <weight>",
		Short: "Set a keyword's weight",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid weight %q", args[1])
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				k, err := a.store.SetWeight(cmd.Context(), args[0], w)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s weight: %s\n", ui.StatusIcon(true), k.Label(), strconv.FormatFloat(k.Weight, 'f', -1, 64))
				return nil
			})
		},
	}
}

func connectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <keyword> <keyword>",
		Short: "Relate two existing keywords",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				added, err := a.store.AddRelation(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if !added {
					ui.Subtle.Fprintf(w, "  %s and %s are already related\n", args[0], args[1])
					return nil
				}
				fmt.Fprintf(w, "%s Connected %s and %s\n", ui.StatusIcon(true), args[0], args[1])
				return nil
			})
		},
	}
}

func disconnectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <keyword> <keyword>",
		Short: "Remove the relation between two keywords",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				removed, err := a.store.RemoveRelation(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if !removed {
					ui.Subtle.Fprintf(w, "  %s and %s were not related\n", args[0], args[1])
					return nil
				}
				fmt.Fprintf(w, "%s Disconnected %s and %s\n", ui.StatusIcon(true), args[0], args[1])
				return nil
			})
		},
	}
}

var errNeedsConfirm = errors.New("refusing to overwrite the graph without --yes")

func clearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every keyword and relation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNeedsConfirm
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared the graph\n", ui.StatusIcon(true))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm")
	return cmd
}

func seedCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the graph with the built-in sample graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNeedsConfirm
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.store.Seed(cmd.Context()); err != nil {
					return err
				}
				g := a.store.Graph(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "%s Seeded %d keywords and %d relations\n",
					ui.StatusIcon(true), len(g.Keywords), len(g.Relations))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
