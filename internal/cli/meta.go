package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/burstflow/internal/app"
	"github.com/specialistvlad/burstflow/internal/meta"
)

// metaFunc runs one metadata operation and returns the reply to print, or
// nil to print nothing.
type metaFunc func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error)

func newMetaCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Operate the metadata service.",
	}

	metaCmd := func(c *cobra.Command, fn metaFunc) *cobra.Command {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			return e.withApp(func(a *app.App) error {
				h, err := a.Meta()
				if err != nil {
					return err
				}
				reply, err := fn(cmd.Context(), h, a.Tenant(), args)
				if err != nil || reply == nil {
					return err
				}
				return a.PrintYAML(reply)
			})
		}
		return c
	}

	var (
		ifNotExists, ifExists bool
		engine, comment       string
		columns, options      []string
		seq                   uint64
		anySeq                bool
		quota                 meta.TenantQuota
	)

	createDatabase := metaCmd(&cobra.Command{
		Use:   "create-database NAME",
		Short: "Create a database.",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		return h.CreateDatabase(ctx, meta.CreateDatabaseReq{
			Tenant:      tenant,
			Name:        args[0],
			Meta:        meta.DatabaseMeta{Engine: engine, Comment: comment},
			IfNotExists: ifNotExists,
		})
	})
	createDatabase.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Succeed if the database exists.")
	createDatabase.Flags().StringVar(&engine, "engine", "", "Database engine.")
	createDatabase.Flags().StringVar(&comment, "comment", "", "Database comment.")

	dropDatabase := metaCmd(&cobra.Command{
		Use:   "drop-database NAME",
		Short: "Drop a database and its tables.",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		return nil, h.DropDatabase(ctx, meta.DropDatabaseReq{Tenant: tenant, Name: args[0], IfExists: ifExists})
	})
	dropDatabase.Flags().BoolVar(&ifExists, "if-exists", false, "Succeed if the database does not exist.")

	listDatabases := metaCmd(&cobra.Command{
		Use:   "list-databases",
		Short: "List the tenant's databases.",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, h *meta.Handler, tenant string, _ []string) (any, error) {
		return h.ListDatabases(ctx, tenant)
	})

	createTable := metaCmd(&cobra.Command{
		Use:   "create-table DATABASE NAME",
		Short: "Create a table.",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		schema, err := parseColumns(columns)
		if err != nil {
			return nil, err
		}
		opts, err := parseOptions(options)
		if err != nil {
			return nil, err
		}
		return h.CreateTable(ctx, meta.CreateTableReq{
			Tenant:      tenant,
			Database:    args[0],
			Name:        args[1],
			Meta:        meta.TableMeta{Schema: schema, Engine: engine, Options: opts, Comment: comment},
			IfNotExists: ifNotExists,
		})
	})
	createTable.Flags().BoolVar(&ifNotExists, "if-not-exists", false, "Succeed if the table exists.")
	createTable.Flags().StringVar(&engine, "engine", "", "Table engine.")
	createTable.Flags().StringVar(&comment, "comment", "", "Table comment.")
	createTable.Flags().StringArrayVar(&columns, "column", nil, "Column as NAME:TYPE; repeatable.")
	createTable.Flags().StringArrayVar(&options, "option", nil, "Option as KEY=VALUE; repeatable.")

	dropTable := metaCmd(&cobra.Command{
		Use:   "drop-table DATABASE NAME",
		Short: "Drop a table.",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		return nil, h.DropTable(ctx, meta.DropTableReq{Tenant: tenant, Database: args[0], Name: args[1], IfExists: ifExists})
	})
	dropTable.Flags().BoolVar(&ifExists, "if-exists", false, "Succeed if the table does not exist.")

	renameTable := metaCmd(&cobra.Command{
		Use:   "rename-table DATABASE NAME NEW_DATABASE NEW_NAME",
		Short: "Rename a table, possibly into another database.",
		Args:  cobra.ExactArgs(4),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		return h.RenameTable(ctx, meta.RenameTableReq{
			Tenant:      tenant,
			Database:    args[0],
			Name:        args[1],
			NewDatabase: args[2],
			NewName:     args[3],
			IfExists:    ifExists,
		})
	})
	renameTable.Flags().BoolVar(&ifExists, "if-exists", false, "Succeed if the table does not exist.")

	getTable := metaCmd(&cobra.Command{
		Use:   "get-table DATABASE NAME",
		Short: "Show a table.",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		return h.GetTable(ctx, tenant, args[0], args[1])
	})

	listTables := metaCmd(&cobra.Command{
		Use:   "list-tables DATABASE",
		Short: "List the tables of a database.",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, h *meta.Handler, tenant string, args []string) (any, error) {
		return h.ListTables(ctx, tenant, args[0])
	})

	upsertOptions := metaCmd(&cobra.Command{
		Use:   "upsert-table-options TABLE_ID",
		Short: "Set or remove table options; an empty value removes the option.",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, h *meta.Handler, _ string, args []string) (any, error) {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid table id %q: %w", args[0], err)
		}
		opts, err := parseOptions(options)
		if err != nil {
			return nil, err
		}
		match := meta.Exact(seq)
		if anySeq {
			match = meta.MatchSeq{Op: meta.MatchAny}
		}
		if err := h.UpsertTableOptions(ctx, meta.UpsertTableOptionsReq{TableID: id, Seq: match, Options: opts}); err != nil {
			return nil, err
		}
		return h.GetTableByID(ctx, id)
	})
	upsertOptions.Flags().Uint64Var(&seq, "seq", 0, "Table version the change applies to.")
	upsertOptions.Flags().BoolVar(&anySeq, "any-seq", false, "Apply regardless of the table version.")
	upsertOptions.Flags().StringArrayVar(&options, "option", nil, "Option as KEY=VALUE; repeatable.")

	showQuota := metaCmd(&cobra.Command{
		Use:   "show-tenant-quota",
		Short: "Show the tenant's quota.",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, h *meta.Handler, tenant string, _ []string) (any, error) {
		return h.GetTenantQuota(ctx, tenant)
	})

	setQuota := metaCmd(&cobra.Command{
		Use:   "set-tenant-quota",
		Short: "Replace the tenant's quota; zero means unlimited.",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, h *meta.Handler, tenant string, _ []string) (any, error) {
		if err := h.SetTenantQuota(ctx, meta.SetTenantQuotaReq{Tenant: tenant, Quota: quota}); err != nil {
			return nil, err
		}
		return h.GetTenantQuota(ctx, tenant)
	})
	setQuota.Flags().Uint32Var(&quota.MaxDatabases, "max-databases", 0, "Maximum databases.")
	setQuota.Flags().Uint32Var(&quota.MaxTablesPerDatabase, "max-tables-per-database", 0, "Maximum tables per database.")
	setQuota.Flags().Uint32Var(&quota.MaxStages, "max-stages", 0, "Maximum stages.")
	setQuota.Flags().Uint32Var(&quota.MaxFilesPerStage, "max-files-per-stage", 0, "Maximum files per stage.")

	cmd.AddCommand(createDatabase, dropDatabase, listDatabases, createTable, dropTable,
		renameTable, getTable, listTables, upsertOptions, showQuota, setQuota)
	return cmd
}

// parseColumns reads NAME:TYPE pairs.
func parseColumns(raw []string) ([]meta.Column, error) {
	cols := make([]meta.Column, 0, len(raw))
	for _, r := range raw {
		name, typ, ok := strings.Cut(r, ":")
		if !ok || name == "" || typ == "" {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid column %q: expected NAME:TYPE", r)}
		}
		cols = append(cols, meta.Column{Name: name, Type: typ})
	}
	return cols, nil
}

// parseOptions reads KEY=VALUE pairs. The value may be empty.
func parseOptions(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	opts := make(map[string]string, len(raw))
	for _, r := range raw {
		k, v, ok := strings.Cut(r, "=")
		if !ok || k == "" {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid option %q: expected KEY=VALUE", r)}
		}
		opts[k] = v
	}
	return opts, nil
}
