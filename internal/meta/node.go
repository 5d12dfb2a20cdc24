package meta

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"go.etcd.io/bbolt"
)

var (
	bucketLog        = []byte("log")
	bucketSeq        = []byte("seq")
	bucketDatabases  = []byte("databases")
	bucketTables     = []byte("tables")
	bucketTableNames = []byte("table_names")
	bucketQuotas     = []byte("quotas")
)

// Node is a single metadata node backed by a bbolt file.
type Node struct {
	db *bbolt.DB
}

// Open opens or creates the metadata store at path.
func Open(path string) (*Node, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLog, bucketSeq, bucketDatabases, bucketTables, bucketTableNames, bucketQuotas} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Node{db: db}, nil
}

// Path returns the file backing the node.
func (n *Node) Path() string {
	return n.db.Path()
}

// Close releases the underlying file.
func (n *Node) Close() error {
	return n.db.Close()
}

// Write appends entry to the log and applies its command. Both happen in a
// single transaction: if the command fails, nothing is recorded.
func (n *Node) Write(ctx context.Context, entry LogEntry) (AppliedState, error) {
	if err := ctx.Err(); err != nil {
		return AppliedState{}, err
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return AppliedState{}, internalError(err)
	}

	var (
		state AppliedState
		index uint64
	)
	err = n.db.Update(func(tx *bbolt.Tx) error {
		log := tx.Bucket(bucketLog)
		index, err = log.NextSequence()
		if err != nil {
			return err
		}
		if err := log.Put(itob(index), raw); err != nil {
			return err
		}
		state, err = apply(tx, entry.Cmd)
		return err
	})
	if err != nil {
		return AppliedState{}, internalError(err)
	}

	ctxlog.FromContext(ctx).Debug("Applied metadata log entry", "index", index, "type", entry.Cmd.cmdType())
	return state, nil
}

// Query is a typed read against the applied state.
type Query[T any] interface {
	read(tx *bbolt.Tx) (T, error)
}

// ConsistentRead runs q against the state as of the last applied entry.
func ConsistentRead[T any](ctx context.Context, n *Node, q Query[T]) (T, error) {
	var out T
	if err := ctx.Err(); err != nil {
		return out, err
	}
	err := n.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = q.read(tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, internalError(err)
	}
	return out, nil
}

type GetDatabaseQuery struct {
	Tenant string
	Name   string
}

func (q GetDatabaseQuery) read(tx *bbolt.Tx) (DatabaseInfo, error) {
	db, err := getJSON[DatabaseInfo](tx.Bucket(bucketDatabases), dbKey(q.Tenant, q.Name))
	if err != nil {
		return DatabaseInfo{}, err
	}
	if db == nil {
		return DatabaseInfo{}, unknownDatabase(q.Name)
	}
	return *db, nil
}

type ListDatabasesQuery struct {
	Tenant string
}

func (q ListDatabasesQuery) read(tx *bbolt.Tx) ([]DatabaseInfo, error) {
	return scanJSON[DatabaseInfo](tx.Bucket(bucketDatabases), []byte(q.Tenant+keySep))
}

type GetTableQuery struct {
	Tenant   string
	Database string
	Name     string
}

func (q GetTableQuery) read(tx *bbolt.Tx) (TableInfo, error) {
	id := tx.Bucket(bucketTableNames).Get(tableKey(q.Tenant, q.Database, q.Name))
	if id == nil {
		return TableInfo{}, unknownTable(q.Name)
	}
	return GetTableByIDQuery{ID: btoi(id)}.read(tx)
}

type GetTableByIDQuery struct {
	ID uint64
}

func (q GetTableByIDQuery) read(tx *bbolt.Tx) (TableInfo, error) {
	t, err := getJSON[TableInfo](tx.Bucket(bucketTables), itob(q.ID))
	if err != nil {
		return TableInfo{}, err
	}
	if t == nil {
		return TableInfo{}, newError(ErrUnknownTable, "table of id %d not found", q.ID)
	}
	return *t, nil
}

type ListTablesQuery struct {
	Tenant   string
	Database string
}

func (q ListTablesQuery) read(tx *bbolt.Tx) ([]TableInfo, error) {
	if tx.Bucket(bucketDatabases).Get(dbKey(q.Tenant, q.Database)) == nil {
		return nil, unknownDatabase(q.Database)
	}
	tables := tx.Bucket(bucketTables)
	var out []TableInfo
	c := tx.Bucket(bucketTableNames).Cursor()
	prefix := []byte(q.Tenant + keySep + q.Database + keySep)
	for k, id := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = c.Next() {
		t, err := getJSON[TableInfo](tables, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

// GetTenantQuotaQuery returns the tenant's quota; a tenant that never set
// one gets the zero quota.
type GetTenantQuotaQuery struct {
	Tenant string
}

func (q GetTenantQuotaQuery) read(tx *bbolt.Tx) (TenantQuota, error) {
	v, err := getJSON[SeqV[TenantQuota]](tx.Bucket(bucketQuotas), []byte(q.Tenant))
	if err != nil || v == nil {
		return TenantQuota{}, err
	}
	return v.Data, nil
}

// LogRecord is a log entry with its index.
type LogRecord struct {
	Index uint64
	Entry LogEntry
}

// ReadLogQuery returns the log entries with index >= From.
type ReadLogQuery struct {
	From uint64
}

func (q ReadLogQuery) read(tx *bbolt.Tx) ([]LogRecord, error) {
	var out []LogRecord
	c := tx.Bucket(bucketLog).Cursor()
	for k, v := c.Seek(itob(q.From)); k != nil; k, v = c.Next() {
		e, err := decodeEntry(v)
		if err != nil {
			return nil, err
		}
		out = append(out, LogRecord{Index: btoi(k), Entry: e})
	}
	return out, nil
}

const keySep = "\x00"

func dbKey(tenant, name string) []byte {
	return []byte(tenant + keySep + name)
}

func tableKey(tenant, db, name string) []byte {
	return []byte(tenant + keySep + db + keySep + name)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func getJSON[T any](b *bbolt.Bucket, key []byte) (*T, error) {
	raw := b.Get(key)
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return &v, nil
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

func scanJSON[T any](b *bbolt.Bucket, prefix []byte) ([]T, error) {
	var out []T
	c := b.Cursor()
	for k, raw := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, raw = c.Next() {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", k, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func unknownDatabase(name string) error {
	return newError(ErrUnknownDatabase, "Unknown database: '%s'", name)
}

func unknownTable(name string) error {
	return newError(ErrUnknownTable, "Unknown table: '%s'", name)
}
