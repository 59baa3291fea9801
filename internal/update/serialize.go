// Tree materialization: walks the field tree built by buildTree and
// produces the final record.Value, applying every operation's semantics.
// The actual two-pass size-then-store binary encoding is delegated to
// internal/record's Sizeof/Encode, which already implement that
// discipline for a record.Value tree (base spec §3/§6).
package update

import (
	"sort"

	"github.com/fiberdb/core/internal/errs"
	"github.com/fiberdb/core/internal/record"
)

// materialize resolves a tree node into its final value.
func materialize(n *node) (record.Value, error) {
	switch n.kind {
	case nodeNop:
		if n.hasBase {
			return n.base, nil
		}
		return record.Nil(), nil

	case nodeScalar:
		return applyScalar(n.op, n.base, n.hasBase)

	case nodeArray:
		return materializeArray(n)

	case nodeMap:
		return materializeMap(n)

	case nodeBar:
		return materializeBar(n)

	case nodeRoute:
		return materializeRoute(n)

	default:
		return record.Value{}, errs.New(errs.UnsupportedUpdate, "update: unreachable node kind")
	}
}

// materializeBar resolves a BAR node: a single operation whose path below
// this point was never expanded into per-level ARRAY/MAP nodes during tree
// construction. It builds that chain on demand, one transient wrapper node
// per path segment, then delegates each level to materializeArray/
// materializeMap so array-splice semantics ('!'/'#') stay in one place.
func materializeBar(n *node) (record.Value, error) {
	return buildBarChain(n.base, n.hasBase, n.barPath, n.barOp)
}

func buildBarChain(base record.Value, hasBase bool, path []Token, op *Op) (record.Value, error) {
	if len(path) == 0 {
		return applyScalar(op, base, hasBase)
	}

	head := path[0]
	rest := path[1:]

	switch head.Kind {
	case TokStr:
		child := &node{}
		if hasBase && base.Kind() == record.KindMap {
			if v, ok := base.MapVal().Get(head.Str); ok {
				child.base, child.hasBase = v, true
			}
		}
		if err := attachBarChild(child, rest, op); err != nil {
			return record.Value{}, err
		}
		wrapper := &node{kind: nodeMap, base: base, hasBase: hasBase, mapChildren: map[string]*node{head.Str: child}}
		return materializeMap(wrapper)

	case TokNum:
		idx, err := resolveArrayIndex(head.Num, head.Num < 0, base, op.Code, len(rest) == 0)
		if err != nil {
			return record.Value{}, err
		}
		child := &node{}
		if hasBase && base.Kind() == record.KindArray {
			arr := base.Arr()
			if idx >= 0 && idx < len(arr) {
				child.base, child.hasBase = arr[idx], true
			}
		}
		if err := attachBarChild(child, rest, op); err != nil {
			return record.Value{}, err
		}
		wrapper := &node{kind: nodeArray, base: base, hasBase: hasBase, arrayChildren: map[int]*node{idx: child}}
		return materializeArray(wrapper)

	default:
		return record.Value{}, errs.New(errs.IllegalParams, "update: unsupported path token")
	}
}

// attachBarChild finishes a transient BAR-chain child: either the scalar
// op itself at the end of the path, or a further resolved value one level
// down, recorded as the child's (now concrete) base.
func attachBarChild(child *node, rest []Token, op *Op) error {
	if len(rest) == 0 {
		child.kind = nodeScalar
		child.op = op
		return nil
	}
	v, err := buildBarChain(child.base, child.hasBase, rest, op)
	if err != nil {
		return err
	}
	child.kind, child.base, child.hasBase = nodeNop, v, true
	return nil
}

// materializeRoute resolves a ROUTE node: the single shared hop of two
// operations' paths before they diverged, wrapping the already-branched
// subtree at routeChild the same way materializeBar wraps its own chain.
func materializeRoute(n *node) (record.Value, error) {
	if n.routeKey.isIndex {
		wrapper := &node{kind: nodeArray, base: n.base, hasBase: n.hasBase, arrayChildren: map[int]*node{n.routeKey.index: n.routeChild}}
		return materializeArray(wrapper)
	}
	wrapper := &node{kind: nodeMap, base: n.base, hasBase: n.hasBase, mapChildren: map[string]*node{n.routeKey.str: n.routeChild}}
	return materializeMap(wrapper)
}

func materializeArray(n *node) (record.Value, error) {
	origLen := 0
	if n.hasBase && n.base.Kind() == record.KindArray {
		origLen = len(n.base.Arr())
	}

	result := make([]record.Value, 0, origLen+len(n.arrayChildren))

	skipUntil := -1
	for i := 0; i < origLen; i++ {
		if i < skipUntil {
			continue
		}
		child, touched := n.arrayChildren[i]
		if !touched {
			result = append(result, n.base.Arr()[i])
			continue
		}

		if child.kind == nodeScalar && child.op.Code == OpDelete {
			count := child.op.DeleteCount
			if count < 1 {
				count = 1
			}
			skipUntil = i + int(count)
			continue
		}

		if child.kind == nodeScalar && child.op.Code == OpInsert {
			result = append(result, child.op.SetValue)
			result = append(result, n.base.Arr()[i])
			continue
		}

		v, err := materialize(child)
		if err != nil {
			return record.Value{}, err
		}
		result = append(result, v)
	}

	// Indices beyond the original length, created purely by an op
	// addressing a new tail position (e.g. appending via '=' or '!').
	extra := make([]int, 0)
	for idx := range n.arrayChildren {
		if idx >= origLen {
			extra = append(extra, idx)
		}
	}
	sort.Ints(extra)
	for _, idx := range extra {
		child := n.arrayChildren[idx]
		if child.kind == nodeScalar && child.op.Code == OpInsert {
			result = append(result, child.op.SetValue)
			continue
		}
		v, err := materialize(child)
		if err != nil {
			return record.Value{}, err
		}
		result = append(result, v)
	}

	return record.Array(result), nil
}

func materializeMap(n *node) (record.Value, error) {
	var baseMap *record.MapValue
	if n.hasBase && n.base.Kind() == record.KindMap {
		baseMap = n.base.MapVal()
	}

	seen := map[string]bool{}
	out := &record.MapValue{}

	if baseMap != nil {
		for i, key := range baseMap.Keys {
			seen[key] = true
			child, touched := n.mapChildren[key]
			if !touched {
				out.Keys = append(out.Keys, key)
				out.Values = append(out.Values, baseMap.Values[i])
				continue
			}
			if child.kind == nodeScalar && child.op.Code == OpDelete {
				continue
			}
			if child.kind == nodeScalar && child.op.Code == OpInsert {
				return record.Value{}, errs.New(errs.Duplicate, "update: insert of an existing map key")
			}
			v, err := materialize(child)
			if err != nil {
				return record.Value{}, err
			}
			out.Keys = append(out.Keys, key)
			out.Values = append(out.Values, v)
		}
	}

	var newKeys []string
	for key := range n.mapChildren {
		if !seen[key] {
			newKeys = append(newKeys, key)
		}
	}
	sort.Strings(newKeys)
	for _, key := range newKeys {
		child := n.mapChildren[key]
		if child.kind == nodeScalar && child.op.Code == OpDelete {
			continue
		}
		if child.kind == nodeScalar && child.op.Code == OpInsert {
			out.Keys = append(out.Keys, key)
			out.Values = append(out.Values, child.op.SetValue)
			continue
		}
		v, err := materialize(child)
		if err != nil {
			return record.Value{}, err
		}
		out.Keys = append(out.Keys, key)
		out.Values = append(out.Values, v)
	}

	return record.Map(out), nil
}
