package meta

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cmd is a state machine command carried by a LogEntry.
type Cmd interface {
	cmdType() string
}

type CreateDatabaseCmd struct {
	Tenant string       `json:"tenant"`
	Name   string       `json:"name"`
	Meta   DatabaseMeta `json:"meta"`
}

type DropDatabaseCmd struct {
	Tenant string `json:"tenant"`
	Name   string `json:"name"`
}

type CreateTableCmd struct {
	Tenant   string    `json:"tenant"`
	Database string    `json:"database"`
	Name     string    `json:"name"`
	Meta     TableMeta `json:"meta"`
}

type DropTableCmd struct {
	Tenant   string `json:"tenant"`
	Database string `json:"database"`
	Name     string `json:"name"`
}

// RenameTableCmd moves a table to NewName, optionally into NewDatabase.
type RenameTableCmd struct {
	Tenant      string `json:"tenant"`
	Database    string `json:"database"`
	Name        string `json:"name"`
	NewDatabase string `json:"new_database"`
	NewName     string `json:"new_name"`
}

// UpsertTableOptionsCmd merges Options into a table's options if the table
// version satisfies Seq. An empty value removes the option.
type UpsertTableOptionsCmd struct {
	TableID uint64            `json:"table_id"`
	Seq     MatchSeq          `json:"seq"`
	Options map[string]string `json:"options"`
}

type SetTenantQuotaCmd struct {
	Tenant string      `json:"tenant"`
	Quota  TenantQuota `json:"quota"`
}

func (CreateDatabaseCmd) cmdType() string     { return "create_database" }
func (DropDatabaseCmd) cmdType() string       { return "drop_database" }
func (CreateTableCmd) cmdType() string        { return "create_table" }
func (DropTableCmd) cmdType() string          { return "drop_table" }
func (RenameTableCmd) cmdType() string        { return "rename_table" }
func (UpsertTableOptionsCmd) cmdType() string { return "upsert_table_options" }
func (SetTenantQuotaCmd) cmdType() string     { return "set_tenant_quota" }

// LogEntry is one record of the metadata log.
type LogEntry struct {
	// TxID identifies the client request, if any.
	TxID string
	Cmd  Cmd
}

type envelope struct {
	TxID string              `json:"txid,omitempty"`
	Type string              `json:"type"`
	Body jsoniter.RawMessage `json:"body"`
}

func encodeEntry(e LogEntry) ([]byte, error) {
	if e.Cmd == nil {
		return nil, fmt.Errorf("log entry has no command")
	}
	body, err := json.Marshal(e.Cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", e.Cmd.cmdType(), err)
	}
	return json.Marshal(envelope{TxID: e.TxID, Type: e.Cmd.cmdType(), Body: body})
}

func decodeEntry(raw []byte) (LogEntry, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return LogEntry{}, fmt.Errorf("failed to decode log entry: %w", err)
	}

	var cmd Cmd
	var err error
	switch env.Type {
	case "create_database":
		cmd, err = decodeCmd[CreateDatabaseCmd](env.Body)
	case "drop_database":
		cmd, err = decodeCmd[DropDatabaseCmd](env.Body)
	case "create_table":
		cmd, err = decodeCmd[CreateTableCmd](env.Body)
	case "drop_table":
		cmd, err = decodeCmd[DropTableCmd](env.Body)
	case "rename_table":
		cmd, err = decodeCmd[RenameTableCmd](env.Body)
	case "upsert_table_options":
		cmd, err = decodeCmd[UpsertTableOptionsCmd](env.Body)
	case "set_tenant_quota":
		cmd, err = decodeCmd[SetTenantQuotaCmd](env.Body)
	default:
		return LogEntry{}, fmt.Errorf("unknown command type %q", env.Type)
	}
	if err != nil {
		return LogEntry{}, fmt.Errorf("failed to decode %s command: %w", env.Type, err)
	}
	return LogEntry{TxID: env.TxID, Cmd: cmd}, nil
}

func decodeCmd[T Cmd](raw []byte) (Cmd, error) {
	var c T
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}
