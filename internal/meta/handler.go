package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/metrics"
)

// Handler serves metadata requests on top of a Node.
type Handler struct {
	node    *Node
	metrics *metrics.Metrics
}

// NewHandler returns a handler for node. m may be nil.
func NewHandler(node *Node, m *metrics.Metrics) *Handler {
	return &Handler{node: node, metrics: m}
}

type CreateDatabaseReq struct {
	Tenant      string
	Name        string
	Meta        DatabaseMeta
	IfNotExists bool
}

type CreateDatabaseReply struct {
	DatabaseID uint64 `json:"database_id" yaml:"database_id"`
}

type DropDatabaseReq struct {
	Tenant   string
	Name     string
	IfExists bool
}

type CreateTableReq struct {
	Tenant      string
	Database    string
	Name        string
	Meta        TableMeta
	IfNotExists bool
}

type CreateTableReply struct {
	TableID uint64 `json:"table_id" yaml:"table_id"`
}

type DropTableReq struct {
	Tenant   string
	Database string
	Name     string
	IfExists bool
}

type RenameTableReq struct {
	Tenant   string
	Database string
	Name     string
	// NewDatabase defaults to Database.
	NewDatabase string
	NewName     string
	IfExists    bool
}

type RenameTableReply struct {
	TableID uint64 `json:"table_id" yaml:"table_id"`
}

type UpsertTableOptionsReq struct {
	TableID uint64
	Seq     MatchSeq
	// Options to set; an empty value removes the option.
	Options map[string]string
}

type SetTenantQuotaReq struct {
	Tenant string
	Quota  TenantQuota
}

// CreateDatabase creates a database. An existing database is an error unless
// IfNotExists is set, in which case its id is returned.
func (h *Handler) CreateDatabase(ctx context.Context, req CreateDatabaseReq) (reply CreateDatabaseReply, err error) {
	defer h.observe(ctx, "create_database", &err)
	if err := validName("database", req.Name); err != nil {
		return CreateDatabaseReply{}, err
	}

	state, err := h.node.Write(ctx, LogEntry{Cmd: CreateDatabaseCmd{Tenant: req.Tenant, Name: req.Name, Meta: req.Meta}})
	if err != nil {
		return CreateDatabaseReply{}, err
	}
	ch := state.Database
	if !ch.Changed() && !req.IfNotExists {
		return CreateDatabaseReply{}, newError(ErrDatabaseAlreadyExists, "%s database exists", req.Name)
	}
	return CreateDatabaseReply{DatabaseID: ch.Ident}, nil
}

// DropDatabase drops a database and its tables.
func (h *Handler) DropDatabase(ctx context.Context, req DropDatabaseReq) (err error) {
	defer h.observe(ctx, "drop_database", &err)

	state, err := h.node.Write(ctx, LogEntry{Cmd: DropDatabaseCmd{Tenant: req.Tenant, Name: req.Name}})
	if err != nil {
		return err
	}
	if state.Database.Prev == nil && !req.IfExists {
		return newError(ErrUnknownDatabase, "database not found: %s", req.Name)
	}
	return nil
}

func (h *Handler) GetDatabase(ctx context.Context, tenant, name string) (info DatabaseInfo, err error) {
	defer h.observe(ctx, "get_database", &err)
	return ConsistentRead(ctx, h.node, GetDatabaseQuery{Tenant: tenant, Name: name})
}

func (h *Handler) ListDatabases(ctx context.Context, tenant string) (dbs []DatabaseInfo, err error) {
	defer h.observe(ctx, "list_databases", &err)
	return ConsistentRead(ctx, h.node, ListDatabasesQuery{Tenant: tenant})
}

// CreateTable creates a table in an existing database.
func (h *Handler) CreateTable(ctx context.Context, req CreateTableReq) (reply CreateTableReply, err error) {
	defer h.observe(ctx, "create_table", &err)
	if err := validName("table", req.Name); err != nil {
		return CreateTableReply{}, err
	}

	cmd := CreateTableCmd{Tenant: req.Tenant, Database: req.Database, Name: req.Name, Meta: req.Meta}
	state, err := h.node.Write(ctx, LogEntry{Cmd: cmd})
	if err != nil {
		return CreateTableReply{}, err
	}
	ch := state.Table
	if !ch.Changed() && !req.IfNotExists {
		return CreateTableReply{}, newError(ErrTableAlreadyExists, "table exists: %s", req.Name)
	}
	return CreateTableReply{TableID: ch.Ident}, nil
}

func (h *Handler) DropTable(ctx context.Context, req DropTableReq) (err error) {
	defer h.observe(ctx, "drop_table", &err)

	state, err := h.node.Write(ctx, LogEntry{Cmd: DropTableCmd{Tenant: req.Tenant, Database: req.Database, Name: req.Name}})
	if err != nil {
		return err
	}
	if state.Table.Prev == nil && !req.IfExists {
		return unknownTable(req.Name)
	}
	return nil
}

// RenameTable renames a table, possibly moving it to another database of the
// same tenant. The table keeps its id.
func (h *Handler) RenameTable(ctx context.Context, req RenameTableReq) (reply RenameTableReply, err error) {
	defer h.observe(ctx, "rename_table", &err)
	if err := validName("table", req.NewName); err != nil {
		return RenameTableReply{}, err
	}

	cmd := RenameTableCmd{
		Tenant:      req.Tenant,
		Database:    req.Database,
		Name:        req.Name,
		NewDatabase: req.NewDatabase,
		NewName:     req.NewName,
	}
	state, err := h.node.Write(ctx, LogEntry{Cmd: cmd})
	if err != nil {
		if req.IfExists && errors.Is(err, ErrUnknownTable) {
			return RenameTableReply{}, nil
		}
		return RenameTableReply{}, err
	}
	return RenameTableReply{TableID: state.Table.Ident}, nil
}

func (h *Handler) GetTable(ctx context.Context, tenant, database, name string) (info TableInfo, err error) {
	defer h.observe(ctx, "get_table", &err)
	return ConsistentRead(ctx, h.node, GetTableQuery{Tenant: tenant, Database: database, Name: name})
}

func (h *Handler) GetTableByID(ctx context.Context, id uint64) (info TableInfo, err error) {
	defer h.observe(ctx, "get_table_by_id", &err)
	return ConsistentRead(ctx, h.node, GetTableByIDQuery{ID: id})
}

func (h *Handler) ListTables(ctx context.Context, tenant, database string) (tables []TableInfo, err error) {
	defer h.observe(ctx, "list_tables", &err)
	return ConsistentRead(ctx, h.node, ListTablesQuery{Tenant: tenant, Database: database})
}

// UpsertTableOptions updates table options if the table version matches
// req.Seq. A stale version yields *TableVersionMismatchError.
func (h *Handler) UpsertTableOptions(ctx context.Context, req UpsertTableOptionsReq) (err error) {
	defer h.observe(ctx, "upsert_table_options", &err)

	cmd := UpsertTableOptionsCmd{TableID: req.TableID, Seq: req.Seq, Options: req.Options}
	state, err := h.node.Write(ctx, LogEntry{Cmd: cmd})
	if err != nil {
		return err
	}
	if ch := state.Table; !ch.Changed() {
		return &TableVersionMismatchError{TableID: req.TableID, Requested: req.Seq, Current: ch.Prev.Seq}
	}
	return nil
}

func (h *Handler) SetTenantQuota(ctx context.Context, req SetTenantQuotaReq) (err error) {
	defer h.observe(ctx, "set_tenant_quota", &err)
	_, err = h.node.Write(ctx, LogEntry{Cmd: SetTenantQuotaCmd{Tenant: req.Tenant, Quota: req.Quota}})
	return err
}

// GetTenantQuota returns the tenant's quota, all zeros if none was set.
func (h *Handler) GetTenantQuota(ctx context.Context, tenant string) (quota TenantQuota, err error) {
	defer h.observe(ctx, "get_tenant_quota", &err)
	return ConsistentRead(ctx, h.node, GetTenantQuotaQuery{Tenant: tenant})
}

func (h *Handler) observe(ctx context.Context, op string, err *error) {
	h.metrics.ObserveMeta(op, *err)
	if *err != nil {
		ctxlog.FromContext(ctx).Debug("Metadata request failed", "op", op, "error", *err)
	}
}

func validName(kind, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%s name must not be empty", kind)
	case strings.Contains(name, keySep):
		return fmt.Errorf("%s name %q contains a NUL byte", kind, name)
	}
	return nil
}
