// Field tree: the in-memory structure the engine builds from a decoded
// operations batch before re-serializing, letting many operations share
// descent through common ancestors (base spec §4.2 "Update tree",
// Design Notes §9's BAR/ROUTE node split for diverging paths).
//
// The root record is always a tuple (array): "columns" in base spec §4.2
// are array indices at the top level. Nested fields reached via dotted
// path segments may be maps or arrays at any depth below the root.
//
// A subtree touched by exactly one operation is never eagerly expanded
// level-by-level into ARRAY/MAP nodes: it is recorded as a single BAR node
// (the operation's remaining path plus the operation itself, still
// unmaterialized). Only a second operation descending into the same
// subtree forces materialization, at the point where the two paths
// actually diverge — a chain of single-child ROUTE nodes down to that
// point, then an ARRAY/MAP node holding both branches.
package update

import (
	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

// nodeKind identifies which shape a tree node has taken, driven by the
// operations that touch it and its descendants.
type nodeKind byte

const (
	// nodeNop carries no operation; its base value is re-emitted unchanged.
	nodeNop nodeKind = iota
	// nodeScalar holds a single terminal operation (=,!,#,+,-,&,|,^,:)
	// applied directly to base.
	nodeScalar
	// nodeArray has per-index children descending into an array base.
	nodeArray
	// nodeMap has per-key children descending into a map base.
	nodeMap
	// nodeBar holds one operation whose remaining path below this point
	// has not been materialized level-by-level, because nothing has
	// needed to branch off it yet.
	nodeBar
	// nodeRoute is a single-token, single-child pass-through: the shared
	// prefix of two operations' paths that have not yet reached their
	// point of divergence.
	nodeRoute
)

// node is one position in the field tree, rooted at the record being
// updated.
type node struct {
	kind    nodeKind
	base    record.Value
	hasBase bool

	op *Op // meaningful when kind == nodeScalar

	barPath []Token // meaningful when kind == nodeBar
	barOp   *Op     // meaningful when kind == nodeBar

	routeKey   pathKey // meaningful when kind == nodeRoute
	routeChild *node   // meaningful when kind == nodeRoute

	arrayChildren map[int]*node
	mapChildren   map[string]*node

	size int // not filled in: sizes are computed by record.Sizeof over the materialized value
}

// pathKey is a resolved, depth-independent identity for one path token:
// an absolute array index or a map key, letting branch resolution compare
// two paths token-by-token regardless of how each token's index was
// originally spelled (tail-relative or absolute).
type pathKey struct {
	isIndex bool
	index   int
	str     string
}

func (k pathKey) equal(o pathKey) bool {
	if k.isIndex != o.isIndex {
		return false
	}
	if k.isIndex {
		return k.index == o.index
	}
	return k.str == o.str
}

// buildTree descends base according to every operation's selector,
// producing the root node and the accumulated column mask.
func buildTree(base record.Value, ops []Op, dict record.Dictionary, idxBase IndexBase) (*node, ColumnMask, error) {
	if base.Kind() != record.KindArray {
		return nil, 0, errs.New(errs.IllegalParams, "update: base record must be an array")
	}
	root := &node{kind: nodeArray, base: base, hasBase: true, arrayChildren: map[int]*node{}}

	var mask ColumnMask
	for i := range ops {
		op := &ops[i]
		top, rest, err := resolveTop(op.Selector, base, dict, idxBase, op.Code)
		if err != nil {
			return nil, 0, err
		}
		child, err := childOf(root, top)
		if err != nil {
			return nil, 0, err
		}
		if err := descend(child, rest, op); err != nil {
			return nil, 0, err
		}
		if op.Code.isStructural() {
			mask.SetFrom(top)
		} else {
			mask.Set(top)
		}
	}
	return root, mask, nil
}

// resolveTop resolves a selector's top-level column against the concrete
// base record, returning the 0-based top index and the remaining path
// tokens (empty if the selector addressed the top-level field directly).
// code is the operation's opcode, needed because a negative selector that
// is both '!' and the final token addresses the position *after* the
// resolved element rather than before it (base spec §4.2 "rule for '!'
// that a negative selector inserts after the targeted position").
func resolveTop(sel selector, base record.Value, dict record.Dictionary, idxBase IndexBase, code Opcode) (int, []Token, error) {
	if !sel.isPath {
		idx, fromTail := adjustIndex(sel.index, idxBase)
		resolved, err := resolveArrayIndex(idx, fromTail, base, code, true)
		return resolved, nil, err
	}

	head := sel.path[0]
	rest := sel.path[1:]
	switch head.Kind {
	case TokStr:
		n, ok := dict.Resolve(head.Str)
		if !ok {
			return 0, nil, errs.New(errs.NoSuchField, "update: unknown field "+head.Str)
		}
		return n, rest, nil
	case TokNum:
		idx, fromTail := adjustIndex(head.Num, idxBase)
		resolved, err := resolveArrayIndex(idx, fromTail, base, code, len(rest) == 0)
		return resolved, rest, err
	default:
		return 0, nil, errs.New(errs.IllegalParams, "update: path head must be a name or index")
	}
}

// resolveArrayIndex turns an engine-internal 0-based index into an
// absolute position. fromTail reports whether the caller's original
// selector was negative (resolve against the array's length); an index
// that is merely negative as a byproduct of index-base adjustment is out
// of range, not a tail reference. When final is true and code is '!', a
// tail-relative index resolves one past the targeted element, matching
// the "insert after" rule for negative selectors.
func resolveArrayIndex(idx int, fromTail bool, base record.Value, code Opcode, final bool) (int, error) {
	if !fromTail {
		if idx < 0 {
			return 0, errs.New(errs.NoSuchField, "update: field index out of range")
		}
		return idx, nil
	}
	if base.Kind() != record.KindArray {
		return idx, nil
	}
	resolved := len(base.Arr()) + idx
	if final && code == OpInsert {
		resolved++
	}
	return resolved, nil
}

// resolveToken resolves one path token to a depth-independent key against
// the concrete value currently occupying this position (base/hasBase),
// using code/final for the same negative-selector "insert after" rule
// resolveArrayIndex applies at the top level.
func resolveToken(tok Token, base record.Value, hasBase bool, code Opcode, final bool) (pathKey, error) {
	switch tok.Kind {
	case TokStr:
		return pathKey{str: tok.Str}, nil
	case TokNum:
		b := record.Value{}
		if hasBase {
			b = base
		}
		idx, err := resolveArrayIndex(tok.Num, tok.Num < 0, b, code, final)
		if err != nil {
			return pathKey{}, err
		}
		return pathKey{isIndex: true, index: idx}, nil
	default:
		return pathKey{}, errs.New(errs.IllegalParams, "update: unsupported path token")
	}
}

// stepInto returns the child value found at key within base, if any.
func stepInto(base record.Value, hasBase bool, key pathKey) (record.Value, bool) {
	if !hasBase {
		return record.Value{}, false
	}
	if key.isIndex {
		if base.Kind() != record.KindArray {
			return record.Value{}, false
		}
		arr := base.Arr()
		if key.index < 0 || key.index >= len(arr) {
			return record.Value{}, false
		}
		return arr[key.index], true
	}
	if base.Kind() != record.KindMap {
		return record.Value{}, false
	}
	return base.MapVal().Get(key.str)
}

// validateDescent checks that descending base via tok's kind makes sense
// (a string key into a map, a numeric index into an array), given the
// concrete value currently occupying this position.
func validateDescent(base record.Value, hasBase bool, tok Token) error {
	if !hasBase {
		return nil
	}
	switch tok.Kind {
	case TokStr:
		if base.Kind() != record.KindMap {
			return errs.New(errs.NoSuchField, "update: path descends into a non-map value")
		}
	case TokNum:
		if base.Kind() != record.KindArray {
			return errs.New(errs.NoSuchField, "update: path descends into a non-array value")
		}
	}
	return nil
}

// descend walks/creates nodes along rest (already past the top-level
// selector), attaching op at the final position.
func descend(n *node, rest []Token, op *Op) error {
	if len(rest) == 0 {
		return attachScalar(n, op)
	}

	switch n.kind {
	case nodeNop:
		if err := validateDescent(n.base, n.hasBase, rest[0]); err != nil {
			return err
		}
		n.kind = nodeBar
		n.barPath = rest
		n.barOp = op
		return nil

	case nodeBar:
		return branchBar(n, rest, op)

	case nodeRoute:
		return branchRoute(n, rest, op)

	case nodeArray, nodeMap:
		return descendInto(n, rest, op)

	default:
		// nodeScalar: a leaf operation already claimed this exact node, and
		// a second operation wants to continue past it into something
		// deeper — an intersecting, not identical, path.
		return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
	}
}

// descendInto resolves path's head token against an already-materialized
// ARRAY/MAP node n, recursing into the named/indexed child.
func descendInto(n *node, path []Token, op *Op) error {
	head := path[0]
	rest := path[1:]

	switch head.Kind {
	case TokStr:
		if n.kind != nodeMap {
			return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
		}
		next, err := mapChildOf(n, head.Str)
		if err != nil {
			return err
		}
		return descend(next, rest, op)

	case TokNum:
		if n.kind != nodeArray {
			return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
		}
		idx, err := resolveArrayIndex(head.Num, head.Num < 0, n.base, op.Code, len(rest) == 0)
		if err != nil {
			return err
		}
		next, err := childOf(n, idx)
		if err != nil {
			return err
		}
		return descend(next, rest, op)

	default:
		return errs.New(errs.IllegalParams, "update: unsupported path token")
	}
}

// branchBar handles a second operation (rest, op) reaching a node already
// holding an unmaterialized BAR (n.barPath, n.barOp), walking both paths
// token-by-token in parallel to find where they actually diverge (base
// spec §4.2 "Branch resolution").
func branchBar(n *node, rest []Token, op *Op) error {
	oldPath, oldOp := n.barPath, n.barOp

	curBase, curHasBase := n.base, n.hasBase
	i := 0
	for i < len(oldPath) && i < len(rest) {
		kOld, err := resolveToken(oldPath[i], curBase, curHasBase, oldOp.Code, i == len(oldPath)-1)
		if err != nil {
			return err
		}
		kNew, err := resolveToken(rest[i], curBase, curHasBase, op.Code, i == len(rest)-1)
		if err != nil {
			return err
		}
		if !kOld.equal(kNew) {
			break
		}
		curBase, curHasBase = stepInto(curBase, curHasBase, kOld)
		i++
	}
	d := i

	switch {
	case d == len(oldPath) && d == len(rest):
		// Both operations address the exact same leaf.
		return errs.New(errs.Duplicate, "update: duplicate operation on the same field")

	case d == len(oldPath):
		// The stored BAR's path is a strict prefix of the new path: the new
		// operation wants to continue past exactly where the old one
		// terminates. Only legal when the old operation is structural
		// ('!'/'#'), since those address a position/count rather than
		// claiming the value there outright; a scalar op genuinely owns
		// that value, so a deeper path past it is an intersection.
		if !oldOp.Code.isStructural() {
			return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
		}
		resolved, err := reapplyStructural(curBase, curHasBase, oldOp)
		if err != nil {
			return err
		}
		n.kind = nodeNop
		n.base, n.hasBase = resolved, true
		n.barPath, n.barOp = nil, nil
		return descend(n, rest[d:], op)

	case d == len(rest):
		// The new operation's path is a strict prefix of the stored BAR's
		// path; the stored BAR is never "copied" in this direction (it is
		// the incoming op that is short), so this is always an
		// intersection, structural or not.
		return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")

	default:
		return branchAt(n, curBase, curHasBase, oldPath[d:], oldOp, rest[d:], op, oldPath, d)
	}
}

// branchRoute handles a further operation reaching an existing ROUTE node,
// either continuing down its single hop (if the new path agrees with it)
// or forcing the route to materialize into an ARRAY/MAP with two children.
func branchRoute(n *node, rest []Token, op *Op) error {
	key, err := resolveToken(rest[0], n.base, n.hasBase, op.Code, len(rest) == 1)
	if err != nil {
		return err
	}
	if key.equal(n.routeKey) {
		return descend(n.routeChild, rest[1:], op)
	}
	if key.isIndex != n.routeKey.isIndex {
		return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
	}
	if err := validateDescent(n.base, n.hasBase, rest[0]); err != nil {
		return err
	}

	oldChild, oldKey := n.routeChild, n.routeKey
	if key.isIndex {
		n.kind = nodeArray
		n.arrayChildren = map[int]*node{oldKey.index: oldChild}
	} else {
		n.kind = nodeMap
		n.mapChildren = map[string]*node{oldKey.str: oldChild}
	}
	n.routeChild = nil

	return descendInto(n, rest, op)
}

// branchAt materializes the point of divergence between two paths that
// shared a depth-d common prefix: a chain of ROUTE nodes down to the
// shared prefix's end (skipped entirely when d is 0, per base spec §4.2
// "if divergence happens at the first token... the parent node is
// transformed in place rather than wrapped in a ROUTE"), then an ARRAY or
// MAP node holding both branches. sharedPrefix is the original BAR path,
// read before n is mutated, so the shared tokens stay available for each
// ROUTE level even as n itself changes kind underneath them.
func branchAt(n *node, base record.Value, hasBase bool, oldPath []Token, oldOp *Op, newPath []Token, newOp *Op, sharedPrefix []Token, d int) error {
	cur := n
	curBase, curHasBase := n.base, n.hasBase
	for lvl := 0; lvl < d; lvl++ {
		tok := sharedPrefix[lvl]
		key, err := resolveToken(tok, curBase, curHasBase, oldOp.Code, false)
		if err != nil {
			return err
		}
		if err := validateDescent(curBase, curHasBase, tok); err != nil {
			return err
		}
		childBase, childHasBase := stepInto(curBase, curHasBase, key)
		child := &node{base: childBase, hasBase: childHasBase}

		cur.kind = nodeRoute
		cur.routeKey = key
		cur.routeChild = child

		cur = child
		curBase, curHasBase = childBase, childHasBase
	}

	return materializeDivergence(cur, curBase, curHasBase, oldPath, oldOp, newPath, newOp)
}

// materializeDivergence turns n into an ARRAY or MAP node holding two
// children: the rebased old operation's continuation and the new
// operation's continuation, diverging right here.
func materializeDivergence(n *node, base record.Value, hasBase bool, oldPath []Token, oldOp *Op, newPath []Token, newOp *Op) error {
	if oldPath[0].Kind != newPath[0].Kind {
		return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
	}
	if err := validateDescent(base, hasBase, oldPath[0]); err != nil {
		return err
	}

	switch oldPath[0].Kind {
	case TokStr:
		n.kind = nodeMap
		n.mapChildren = map[string]*node{}
	case TokNum:
		n.kind = nodeArray
		n.arrayChildren = map[int]*node{}
	default:
		return errs.New(errs.IllegalParams, "update: unsupported path token")
	}
	n.base, n.hasBase = base, hasBase

	if err := descendInto(n, oldPath, oldOp); err != nil {
		return err
	}
	return descendInto(n, newPath, newOp)
}

// reapplyStructural resolves what an '!'/'#' operation leaves behind at its
// own position, so a BAR whose remaining path is otherwise empty can still
// be rebased when a later operation needs to branch past it (base spec
// §4.2: "an existing BAR whose stored operation is non-scalar and whose
// remaining path is empty cannot be copied when branching"). '!' leaves
// its inserted value in place of the old one; '#' removes the position
// entirely, so nothing survives to descend into.
func reapplyStructural(base record.Value, hasBase bool, op *Op) (record.Value, error) {
	switch op.Code {
	case OpInsert:
		return op.SetValue, nil
	case OpDelete:
		return record.Value{}, errs.New(errs.UnsupportedUpdate, "update: cannot address a field beneath a deleted element")
	default:
		return record.Value{}, errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
	}
}

func attachScalar(n *node, op *Op) error {
	switch n.kind {
	case nodeNop:
		n.kind = nodeScalar
		n.op = op
		return nil
	case nodeScalar:
		// The exact same full path, addressed twice.
		return errs.New(errs.Duplicate, "update: duplicate operation on the same field")
	default:
		// nodeArray/nodeMap/nodeBar/nodeRoute: some other operation already
		// continued past this node with a longer path; this op's path
		// intersects it without being identical.
		return errs.New(errs.UnsupportedUpdate, "update: conflicting operations on overlapping paths")
	}
}

// childOf returns (creating if necessary) the array-indexed child of n,
// seeding its base value from n.base if n has one.
func childOf(n *node, idx int) (*node, error) {
	if n.arrayChildren == nil {
		n.arrayChildren = map[int]*node{}
	}
	if c, ok := n.arrayChildren[idx]; ok {
		return c, nil
	}
	c := &node{}
	if n.hasBase && n.base.Kind() == record.KindArray {
		arr := n.base.Arr()
		if idx >= 0 && idx < len(arr) {
			c.base = arr[idx]
			c.hasBase = true
		}
	}
	n.arrayChildren[idx] = c
	return c, nil
}

// mapChildOf returns (creating if necessary) the map-keyed child of n.
func mapChildOf(n *node, key string) (*node, error) {
	if n.mapChildren == nil {
		n.mapChildren = map[string]*node{}
	}
	if c, ok := n.mapChildren[key]; ok {
		return c, nil
	}
	c := &node{}
	if n.hasBase && n.base.Kind() == record.KindMap {
		if v, ok := n.base.MapVal().Get(key); ok {
			c.base = v
			c.hasBase = true
		}
	}
	n.mapChildren[key] = c
	return c, nil
}
