package main

import (
	"fmt"
	"iter"
	"strings"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/query"
	"github.com/spf13/cobra"
)

func (a *app) scanCmd() *cobra.Command {
	var (
		keyspace  string
		at        int64
		fold      bool
		tolerance float64
		mode      string
		stats     bool
	)
	cmd := &cobra.Command{
		Use:   "scan <property> <op> [value...]",
		Short: "List the entities whose value matches at --at",
		Long: `Operators: any, eq, ne, gt, ge, lt, le, in, not-in, starts-with,
not-starts-with, ends-with, not-ends-with, contains, not-contains, matches,
not-matches, like, not-like.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := query.ParseOp(args[1])
			if err != nil {
				return err
			}
			var m tindex.ScanMode
			switch mode {
			case "contains":
				m = tindex.ModeContains
			case "latest-closed":
				m = tindex.ModeLatestClosedBefore
			default:
				return fmt.Errorf("unknown scan mode %q", mode)
			}

			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				spec, err := buildSpec(eng, args[0], op, args[2:])
				if err != nil {
					return err
				}
				spec.CaseInsensitive = fold
				spec.Tolerance = tolerance

				res, err := eng.Scan(cmd.Context(), spec, keyspace, at, m)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range res.Entries {
					fmt.Fprintf(out, "%s\t%s\n", e.Entity, e.Value)
				}
				if stats {
					fmt.Fprintf(cmd.ErrOrStderr(), "visited %d, matched %d, admitted %d\n",
						res.Stats.Visited, res.Stats.Matched, res.Stats.Admitted)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&keyspace, "keyspace", "k", "", "keyspace to scan")
	f.Int64Var(&at, "at", 0, "scan instant")
	f.BoolVarP(&fold, "ignore-case", "i", false, "compare text case-insensitively")
	f.Float64Var(&tolerance, "tolerance", 0, "float equality tolerance")
	f.StringVar(&mode, "mode", "contains", "validity test: contains or latest-closed")
	f.BoolVar(&stats, "stats", false, "print scan statistics to stderr")
	return cmd
}

func buildSpec(eng *tindex.Engine, property string, op query.Op, operands []string) (query.Spec, error) {
	spec := query.Spec{Property: property, Op: op}
	var kind query.Kind
	for _, def := range eng.Indexes() {
		if def.Property == property {
			kind = def.Kind
		}
	}
	if kind == query.KindInvalid {
		return spec, fmt.Errorf("%w: property %s", tindex.ErrIndexNotFound, property)
	}
	if op.IsText() {
		kind = query.KindString
	}

	switch op {
	case query.OpAny:
		if len(operands) != 0 {
			return spec, fmt.Errorf("%s takes no value", op)
		}
		return spec, nil
	case query.OpIn, query.OpNotIn:
		for _, s := range operands {
			v, err := query.Parse(kind, s)
			if err != nil {
				return spec, err
			}
			spec.Values = append(spec.Values, v)
		}
		return spec, nil
	}
	if len(operands) != 1 {
		return spec, fmt.Errorf("%s takes exactly one value", op)
	}
	v, err := query.Parse(kind, operands[0])
	if err != nil {
		return spec, err
	}
	spec.Value = v
	return spec, nil
}

func (a *app) dumpCmd() *cobra.Command {
	var keyspaces []string
	cmd := &cobra.Command{
		Use:   "dump <index>",
		Short: "Print every stored cell of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				def, ok := eng.Index(args[0])
				if !ok {
					return fmt.Errorf("%w: id %s", tindex.ErrIndexNotFound, args[0])
				}
				out := cmd.OutOrStdout()
				return eng.View(cmd.Context(), func(tx *tindex.Tx) error {
					spaces := keyspaces
					if len(spaces) == 0 {
						var err error
						if spaces, err = tx.Keyspaces(def.ID); err != nil {
							return err
						}
					}
					for _, ks := range spaces {
						err := tx.AllEntries(ks, def.Property, func(tbl tindex.Table, rows iter.Seq2[tindex.Row, error]) error {
							kind := "exact"
							if tbl.Folded {
								kind = "folded"
							}
							for row, err := range rows {
								if err != nil {
									return err
								}
								fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", ks, kind, row.Value, row.Entity,
									strings.ReplaceAll(row.Intervals.String(), " ", ""))
							}
							return nil
						})
						if err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&keyspaces, "keyspace", "k", nil, "keyspaces to dump (default all)")
	return cmd
}
