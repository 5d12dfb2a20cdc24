package meta

import (
	"bytes"
	"fmt"
	"maps"

	"go.etcd.io/bbolt"
)

// AppliedState is the outcome of applying one command. Exactly one field is
// set, matching the command type.
type AppliedState struct {
	Database *Change[DatabaseInfo]
	Table    *Change[TableInfo]
	Quota    *Change[TenantQuota]
}

func apply(tx *bbolt.Tx, cmd Cmd) (AppliedState, error) {
	switch c := cmd.(type) {
	case CreateDatabaseCmd:
		ch, err := applyCreateDatabase(tx, c)
		return AppliedState{Database: ch}, err
	case DropDatabaseCmd:
		ch, err := applyDropDatabase(tx, c)
		return AppliedState{Database: ch}, err
	case CreateTableCmd:
		ch, err := applyCreateTable(tx, c)
		return AppliedState{Table: ch}, err
	case DropTableCmd:
		ch, err := applyDropTable(tx, c)
		return AppliedState{Table: ch}, err
	case RenameTableCmd:
		ch, err := applyRenameTable(tx, c)
		return AppliedState{Table: ch}, err
	case UpsertTableOptionsCmd:
		ch, err := applyUpsertTableOptions(tx, c)
		return AppliedState{Table: ch}, err
	case SetTenantQuotaCmd:
		ch, err := applySetTenantQuota(tx, c)
		return AppliedState{Quota: ch}, err
	default:
		return AppliedState{}, fmt.Errorf("unsupported command %T", cmd)
	}
}

func nextSeq(tx *bbolt.Tx) (uint64, error) {
	return tx.Bucket(bucketSeq).NextSequence()
}

func dbVersion(db *DatabaseInfo) *SeqV[DatabaseInfo] {
	if db == nil {
		return nil
	}
	return &SeqV[DatabaseInfo]{Seq: db.Seq, Data: *db}
}

func tableVersion(t *TableInfo) *SeqV[TableInfo] {
	if t == nil {
		return nil
	}
	return &SeqV[TableInfo]{Seq: t.Seq, Data: *t}
}

// applyCreateDatabase leaves an existing database untouched and reports it
// as both Prev and Result.
func applyCreateDatabase(tx *bbolt.Tx, c CreateDatabaseCmd) (*Change[DatabaseInfo], error) {
	dbs := tx.Bucket(bucketDatabases)
	key := dbKey(c.Tenant, c.Name)
	existing, err := getJSON[DatabaseInfo](dbs, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		v := dbVersion(existing)
		return &Change[DatabaseInfo]{Ident: existing.ID, Prev: v, Result: v}, nil
	}

	id, err := dbs.NextSequence()
	if err != nil {
		return nil, err
	}
	seq, err := nextSeq(tx)
	if err != nil {
		return nil, err
	}
	db := DatabaseInfo{ID: id, Tenant: c.Tenant, Name: c.Name, Seq: seq, Meta: c.Meta}
	if err := putJSON(dbs, key, db); err != nil {
		return nil, err
	}
	return &Change[DatabaseInfo]{Ident: id, Result: dbVersion(&db)}, nil
}

// applyDropDatabase removes the database and every table in it.
func applyDropDatabase(tx *bbolt.Tx, c DropDatabaseCmd) (*Change[DatabaseInfo], error) {
	dbs := tx.Bucket(bucketDatabases)
	key := dbKey(c.Tenant, c.Name)
	existing, err := getJSON[DatabaseInfo](dbs, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &Change[DatabaseInfo]{}, nil
	}

	names := tx.Bucket(bucketTableNames)
	tables := tx.Bucket(bucketTables)
	prefix := []byte(c.Tenant + keySep + c.Name + keySep)
	var stale [][]byte
	cur := names.Cursor()
	for k, id := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, id = cur.Next() {
		stale = append(stale, append([]byte(nil), k...))
		if err := tables.Delete(id); err != nil {
			return nil, err
		}
	}
	for _, k := range stale {
		if err := names.Delete(k); err != nil {
			return nil, err
		}
	}
	if err := dbs.Delete(key); err != nil {
		return nil, err
	}
	return &Change[DatabaseInfo]{Ident: existing.ID, Prev: dbVersion(existing)}, nil
}

func applyCreateTable(tx *bbolt.Tx, c CreateTableCmd) (*Change[TableInfo], error) {
	if tx.Bucket(bucketDatabases).Get(dbKey(c.Tenant, c.Database)) == nil {
		return nil, unknownDatabase(c.Database)
	}
	names := tx.Bucket(bucketTableNames)
	tables := tx.Bucket(bucketTables)
	nameKey := tableKey(c.Tenant, c.Database, c.Name)
	if raw := names.Get(nameKey); raw != nil {
		existing, err := getJSON[TableInfo](tables, raw)
		if err != nil {
			return nil, err
		}
		v := tableVersion(existing)
		return &Change[TableInfo]{Ident: btoi(raw), Prev: v, Result: v}, nil
	}

	id, err := tables.NextSequence()
	if err != nil {
		return nil, err
	}
	seq, err := nextSeq(tx)
	if err != nil {
		return nil, err
	}
	t := TableInfo{ID: id, Seq: seq, Tenant: c.Tenant, Database: c.Database, Name: c.Name, Meta: c.Meta}
	if err := putJSON(tables, itob(id), t); err != nil {
		return nil, err
	}
	if err := names.Put(nameKey, itob(id)); err != nil {
		return nil, err
	}
	return &Change[TableInfo]{Ident: id, Result: tableVersion(&t)}, nil
}

func applyDropTable(tx *bbolt.Tx, c DropTableCmd) (*Change[TableInfo], error) {
	names := tx.Bucket(bucketTableNames)
	tables := tx.Bucket(bucketTables)
	nameKey := tableKey(c.Tenant, c.Database, c.Name)
	raw := names.Get(nameKey)
	if raw == nil {
		return &Change[TableInfo]{}, nil
	}
	id := btoi(raw)
	existing, err := getJSON[TableInfo](tables, raw)
	if err != nil {
		return nil, err
	}
	if err := tables.Delete(itob(id)); err != nil {
		return nil, err
	}
	if err := names.Delete(nameKey); err != nil {
		return nil, err
	}
	return &Change[TableInfo]{Ident: id, Prev: tableVersion(existing)}, nil
}

func applyRenameTable(tx *bbolt.Tx, c RenameTableCmd) (*Change[TableInfo], error) {
	newDB := c.NewDatabase
	if newDB == "" {
		newDB = c.Database
	}
	dbs := tx.Bucket(bucketDatabases)
	for _, db := range []string{c.Database, newDB} {
		if dbs.Get(dbKey(c.Tenant, db)) == nil {
			return nil, unknownDatabase(db)
		}
	}

	names := tx.Bucket(bucketTableNames)
	tables := tx.Bucket(bucketTables)
	oldKey := tableKey(c.Tenant, c.Database, c.Name)
	newKey := tableKey(c.Tenant, newDB, c.NewName)
	raw := names.Get(oldKey)
	if raw == nil {
		return nil, unknownTable(c.Name)
	}
	if names.Get(newKey) != nil {
		return nil, newError(ErrTableAlreadyExists, "table exists: %s", c.NewName)
	}
	id := btoi(raw)
	existing, err := getJSON[TableInfo](tables, itob(id))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, newError(ErrUnknownTable, "table of id %d not found", id)
	}

	seq, err := nextSeq(tx)
	if err != nil {
		return nil, err
	}
	renamed := *existing
	renamed.Database = newDB
	renamed.Name = c.NewName
	renamed.Seq = seq
	if err := putJSON(tables, itob(id), renamed); err != nil {
		return nil, err
	}
	if err := names.Delete(oldKey); err != nil {
		return nil, err
	}
	if err := names.Put(newKey, itob(id)); err != nil {
		return nil, err
	}
	return &Change[TableInfo]{Ident: id, Prev: tableVersion(existing), Result: tableVersion(&renamed)}, nil
}

// applyUpsertTableOptions returns an unchanged Change when the table version
// does not satisfy c.Seq.
func applyUpsertTableOptions(tx *bbolt.Tx, c UpsertTableOptionsCmd) (*Change[TableInfo], error) {
	tables := tx.Bucket(bucketTables)
	existing, err := getJSON[TableInfo](tables, itob(c.TableID))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, newError(ErrUnknownTable, "table of id %d not found", c.TableID)
	}
	prev := tableVersion(existing)
	if !c.Seq.Match(existing.Seq) {
		return &Change[TableInfo]{Ident: c.TableID, Prev: prev, Result: prev}, nil
	}

	seq, err := nextSeq(tx)
	if err != nil {
		return nil, err
	}
	updated := *existing
	updated.Meta.Options = maps.Clone(existing.Meta.Options)
	if updated.Meta.Options == nil {
		updated.Meta.Options = make(map[string]string, len(c.Options))
	}
	for k, v := range c.Options {
		if v == "" {
			delete(updated.Meta.Options, k)
			continue
		}
		updated.Meta.Options[k] = v
	}
	updated.Seq = seq
	if err := putJSON(tables, itob(c.TableID), updated); err != nil {
		return nil, err
	}
	return &Change[TableInfo]{Ident: c.TableID, Prev: prev, Result: tableVersion(&updated)}, nil
}

func applySetTenantQuota(tx *bbolt.Tx, c SetTenantQuotaCmd) (*Change[TenantQuota], error) {
	quotas := tx.Bucket(bucketQuotas)
	prev, err := getJSON[SeqV[TenantQuota]](quotas, []byte(c.Tenant))
	if err != nil {
		return nil, err
	}
	seq, err := nextSeq(tx)
	if err != nil {
		return nil, err
	}
	result := &SeqV[TenantQuota]{Seq: seq, Data: c.Quota}
	if err := putJSON(quotas, []byte(c.Tenant), result); err != nil {
		return nil, err
	}
	return &Change[TenantQuota]{Prev: prev, Result: result}, nil
}
