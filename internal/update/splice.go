// Splice operator (':') semantics: remove SpliceCut bytes starting at
// SpliceOffset and insert SplicePaste in their place, matching base spec
// §4.2's string-splice operator. Offsets follow the same negative-means-
// from-tail convention as selectors.
package update

import (
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

func splice(base record.Value, offset, cut int64, paste []byte) (record.Value, error) {
	var src []byte
	binary := base.Kind() == record.KindBinary
	if binary {
		src = base.Bin()
	} else if base.Kind() == record.KindString {
		src = []byte(base.Str())
	} else {
		return record.Value{}, errs.New(errs.UpdateFieldType, "update: splice operand must be a string or binary value")
	}

	n := int64(len(src))
	off := offset
	if off < 0 {
		off += n
		if off < 0 {
			off = 0
		}
	}
	if off > n {
		off = n
	}

	if cut < 0 {
		cut = n - off + cut
	}
	if cut < 0 {
		cut = 0
	}
	end := off + cut
	if end > n {
		end = n
	}

	out := make([]byte, 0, off+int64(len(paste))+(n-end))
	out = append(out, src[:off]...)
	out = append(out, paste...)
	out = append(out, src[end:]...)

	if binary {
		return record.Binary(out), nil
	}
	return record.String(string(out)), nil
}
