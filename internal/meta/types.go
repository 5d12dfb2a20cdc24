package meta

import "fmt"

// SeqV is a value with the sequence number of the write that produced it.
type SeqV[T any] struct {
	Seq  uint64 `json:"seq"`
	Data T      `json:"data"`
}

// Change is the result of applying a command: the value before and after,
// and the identifier of the affected entity.
type Change[T any] struct {
	Ident  uint64   `json:"ident"`
	Prev   *SeqV[T] `json:"prev,omitempty"`
	Result *SeqV[T] `json:"result,omitempty"`
}

// Changed reports whether the command modified the value.
func (c *Change[T]) Changed() bool {
	switch {
	case c.Prev == nil && c.Result == nil:
		return false
	case c.Prev == nil || c.Result == nil:
		return true
	default:
		return c.Prev.Seq != c.Result.Seq
	}
}

// DatabaseMeta is the user-supplied part of a database definition.
type DatabaseMeta struct {
	Engine        string            `json:"engine,omitempty" yaml:"engine,omitempty"`
	EngineOptions map[string]string `json:"engine_options,omitempty" yaml:"engine_options,omitempty"`
	Comment       string            `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// DatabaseInfo is a stored database.
type DatabaseInfo struct {
	ID     uint64       `json:"id" yaml:"id"`
	Tenant string       `json:"tenant" yaml:"tenant"`
	Name   string       `json:"name" yaml:"name"`
	Seq    uint64       `json:"seq" yaml:"seq"`
	Meta   DatabaseMeta `json:"meta" yaml:"meta"`
}

// Column is one field of a table schema.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TableMeta is the user-supplied part of a table definition.
type TableMeta struct {
	Schema  []Column          `json:"schema,omitempty" yaml:"schema,omitempty"`
	Engine  string            `json:"engine,omitempty" yaml:"engine,omitempty"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
	Comment string            `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// TableInfo is a stored table.
type TableInfo struct {
	ID       uint64    `json:"id" yaml:"id"`
	Seq      uint64    `json:"seq" yaml:"seq"`
	Tenant   string    `json:"tenant" yaml:"tenant"`
	Database string    `json:"database" yaml:"database"`
	Name     string    `json:"name" yaml:"name"`
	Meta     TableMeta `json:"meta" yaml:"meta"`
}

// TenantQuota limits what a tenant may create. Zero means unlimited. The
// limits are stored and reported here; enforcing them is up to callers.
type TenantQuota struct {
	MaxDatabases         uint32 `json:"max_databases" yaml:"max_databases"`
	MaxTablesPerDatabase uint32 `json:"max_tables_per_database" yaml:"max_tables_per_database"`
	MaxStages            uint32 `json:"max_stages" yaml:"max_stages"`
	MaxFilesPerStage     uint32 `json:"max_files_per_stage" yaml:"max_files_per_stage"`
}

// MatchOp selects how MatchSeq compares sequence numbers.
type MatchOp int

const (
	// MatchAny accepts every sequence number.
	MatchAny MatchOp = iota
	// MatchExact accepts only the given sequence number.
	MatchExact
	// MatchGE accepts sequence numbers greater than or equal to the given one.
	MatchGE
)

// MatchSeq is the version condition of an optimistic update.
type MatchSeq struct {
	Op  MatchOp `json:"op"`
	Seq uint64  `json:"seq"`
}

// Exact returns a condition matching only seq.
func Exact(seq uint64) MatchSeq {
	return MatchSeq{Op: MatchExact, Seq: seq}
}

// Match reports whether current satisfies the condition.
func (m MatchSeq) Match(current uint64) bool {
	switch m.Op {
	case MatchExact:
		return current == m.Seq
	case MatchGE:
		return current >= m.Seq
	default:
		return true
	}
}

func (m MatchSeq) String() string {
	switch m.Op {
	case MatchExact:
		return fmt.Sprintf("Exact(%d)", m.Seq)
	case MatchGE:
		return fmt.Sprintf("GE(%d)", m.Seq)
	default:
		return "Any"
	}
}
