package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hupe1980/tindex"
	"github.com/hupe1980/tindex/backup"
	"github.com/spf13/cobra"
)

func (a *app) backupCmd() *cobra.Command {
	var (
		indexes     []string
		compression string
		noCommit    bool
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export indexes to the configured backup store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bc := a.cfg.Backup
			if compression != "" {
				bc.Compression = compression
			}
			opts, err := bc.Options(a.logger)
			if err != nil {
				return err
			}
			if len(indexes) > 0 {
				opts = append(opts, backup.WithIndexes(indexes...))
			}
			if noCommit {
				opts = append(opts, backup.WithoutCommit())
			}
			store, err := bc.OpenStore(ctx)
			if err != nil {
				return err
			}
			return a.withEngine(ctx, func(eng *tindex.Engine) error {
				m, err := backup.Export(ctx, eng, store, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d indexes\t%d rows\n", m.ID, len(m.Indexes), m.Rows())
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&indexes, "index", nil, "index IDs to export (default all)")
	f.StringVar(&compression, "compression", "", "none, lz4 or zstd (default from config)")
	f.BoolVar(&noCommit, "no-commit", false, "do not mark the backup as latest")

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.cfg.Backup.OpenStore(ctx)
			if err != nil {
				return err
			}
			ms, err := backup.List(ctx, store)
			if err != nil {
				return err
			}
			latest, _ := backup.Latest(ctx, store)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tINDEXES\tROWS\tCOMPRESSION\tLATEST")
			for _, m := range ms {
				mark := ""
				if m.ID == latest {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", m.ID, m.CreatedAt.Format(time.RFC3339),
					len(m.Indexes), m.Rows(), m.Compression, mark)
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(list)
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	var indexes []string
	cmd := &cobra.Command{
		Use:   "restore [backup-id]",
		Short: "Replace index contents with a backup (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			opts, err := a.cfg.Backup.Options(a.logger)
			if err != nil {
				return err
			}
			if len(indexes) > 0 {
				opts = append(opts, backup.WithIndexes(indexes...))
			}
			store, err := a.cfg.Backup.OpenStore(ctx)
			if err != nil {
				return err
			}
			return a.withEngine(ctx, func(eng *tindex.Engine) error {
				m, err := backup.Restore(ctx, eng, store, id, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", m.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&indexes, "index", nil, "index IDs to restore (default all)")
	return cmd
}
