package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/query"
	"github.com/spf13/cobra"
)

func (a *app) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, drop and list index definitions",
	}

	create := &cobra.Command{
		Use:   "create <id> <property> <int|float|string>",
		Short: "Create an index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := query.ParseKind(args[2])
			if err != nil {
				return err
			}
			def := tindex.IndexDefinition{ID: args[0], Property: args[1], Kind: kind}
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				return eng.CreateIndex(cmd.Context(), def)
			})
		},
	}

	drop := &cobra.Command{
		Use:   "drop <id>",
		Short: "Drop an index and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				return eng.DropIndex(cmd.Context(), args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List index definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPROPERTY\tKIND")
				for _, def := range eng.Indexes() {
					fmt.Fprintf(w, "%s\t%s\t%s\n", def.ID, def.Property, def.Kind)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(create, drop, list)
	return cmd
}

// parseValue parses text as a value of the index kind.
func parseValue(eng *tindex.Engine, indexID, text string) (query.Value, error) {
	def, ok := eng.Index(indexID)
	if !ok {
		return query.Value{}, fmt.Errorf("%w: id %s", tindex.ErrIndexNotFound, indexID)
	}
	v, err := query.Parse(def.Kind, text)
	if err != nil {
		return query.Value{}, fmt.Errorf("%w: value %q for %s index %s: %v", tindex.ErrPrecondition, text, def.Kind, indexID, err)
	}
	return v, nil
}
