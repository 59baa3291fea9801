package update

import (
	"github.com/fiberdb/core/internal/record"
)

// selector is the decoded, not-yet-resolved field selector of one
// operation: either a signed integer (in the caller's index base, adjusted
// to 0-based by adjustIndex when resolved; negative meaning "from the
// tail") or a dotted/bracketed path.
type selector struct {
	isPath bool
	index  int     // valid when !isPath
	path   []Token // valid when isPath; head token included
	raw    string  // original path text, for squash re-emission and errors
}

// Op is one decoded update operation, ready for field-tree application.
type Op struct {
	Code     Opcode
	Selector selector

	// argument union; which fields are meaningful depends on Code.
	SetValue     record.Value // '=', '!'
	DeleteCount  int64        // '#'
	ArithValue   record.Value // '+', '-' (numeric kind indicates sub-type)
	BitValue     uint64       // '&', '|', '^'
	SpliceOffset int64        // ':'
	SpliceCut    int64        // ':'
	SplicePaste  []byte       // ':'

	// size is a slot for the serialized size of this operation's resulting
	// value (base spec §3 "UpdateOp"); it is not filled in, since output
	// sizes are computed by record.Sizeof over the materialized value.
	size int
}
