package pool

import (
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// Result is what every operation replies with: either a canonical value
// (reads, single-record writes that return the generated ID) or an
// affected-row count, never both populated at once.
type Result struct {
	Value    value.Value
	Values   []value.Value
	Affected int64
	Found    bool
	Err      error
}

// opKind discriminates the eleven operation message shapes the worker inbox
// accepts, matching the wire the facade speaks to the pool.
type opKind int

const (
	opCreateTable opKind = iota
	opDropTable
	opCreate
	opFind
	opFindByID
	opUpdate
	opUpdateByID
	opDelete
	opDeleteByID
	opCount
	opExists
)

// operation is the discriminated message the facade enqueues and the
// single worker goroutine dequeues in arrival order. reply is a one-shot
// channel: the worker sends exactly once and never blocks on send because
// it is always buffered by one.
type operation struct {
	kind  opKind
	table string

	schema schema.Schema // opCreateTable only

	record value.Value // opCreate
	id     value.Value // opFindByID/opUpdateByID/opDeleteByID

	opts query.Options // opFind/opUpdate/opDelete/opCount/opExists: Effective() yields the condition tree

	data value.Value // opUpdate/opUpdateByID

	reply chan Result
}

func newOperation(kind opKind, table string) *operation {
	return &operation{kind: kind, table: table, reply: make(chan Result, 1)}
}

// sendReply delivers r without blocking. A caller that has stopped
// listening (dropped the receive side) simply never reads it; since reply
// is buffered by one, this send never blocks the worker loop, matching the
// cancellation semantics where dropped reply receivers do not cancel
// backend work already performed.
func (o *operation) sendReply(r Result) {
	o.reply <- r
}
