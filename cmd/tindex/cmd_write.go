package main

import (
	"fmt"

	"github.com/hupe1980/tindex"
	"github.com/spf13/cobra"
)

func (a *app) insertCmd() *cobra.Command {
	var from, to int64
	cmd := &cobra.Command{
		Use:   "insert <index> <keyspace> <value> <entity>",
		Short: "Record that entity holds value from --from until --to",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				v, err := parseValue(eng, args[0], args[2])
				if err != nil {
					return err
				}
				return eng.Update(cmd.Context(), func(tx *tindex.Tx) error {
					return tx.InsertRange(args[0], args[1], v, args[3], from, to)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "start of validity")
	cmd.Flags().Int64Var(&to, "to", tindex.Forever, "end of validity (exclusive)")
	return cmd
}

func (a *app) terminateCmd() *cobra.Command {
	var at, assumedLower int64
	cmd := &cobra.Command{
		Use:   "terminate <index> <keyspace> <value> <entity>",
		Short: "End the validity of value for entity at --at",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				v, err := parseValue(eng, args[0], args[2])
				if err != nil {
					return err
				}
				changed, err := eng.TerminateValidity(cmd.Context(), args[0], args[1], v, args[3], at, assumedLower)
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintln(cmd.OutOrStdout(), "unchanged")
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "instant at which validity ends")
	cmd.Flags().Int64Var(&assumedLower, "assumed-lower", 0, "start of the history written when no validity is stored")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func (a *app) rollbackCmd() *cobra.Command {
	var at int64
	cmd := &cobra.Command{
		Use:   "rollback <index> [entity...]",
		Short: "Restore the index (or the given entities) to its state at --at",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(eng *tindex.Engine) error {
				stats, err := eng.Rollback(cmd.Context(), args[0], at, args[1:]...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, rewritten %d, deleted %d\n",
					stats.Scanned, stats.Rewritten, stats.Deleted)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "rollback instant")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}
