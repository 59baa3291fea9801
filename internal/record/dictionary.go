package record

// Dictionary maps field names to their ordinal position within the
// outermost array of a record, resolving the leading bare-name token of a
// JSON-like path (base spec §4.2/§6).
type Dictionary struct {
	byName map[string]int
}

// NewDictionary builds a Dictionary from an ordered field-name list, where
// the slice index is the ordinal used by the update engine.
func NewDictionary(fields []string) Dictionary {
	d := Dictionary{byName: make(map[string]int, len(fields))}
	for i, f := range fields {
		d.byName[f] = i
	}
	return d
}

// Resolve returns the 0-based top-level ordinal for name, if known.
func (d Dictionary) Resolve(name string) (int, bool) {
	if d.byName == nil {
		return 0, false
	}
	i, ok := d.byName[name]
	return i, ok
}
