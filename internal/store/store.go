// Package store implements the hierarchical key/value container that the
// rest of the composition pipeline reads from and writes into.
//
// A Store is an insertion-ordered mapping from short, dot-free key segments
// to Values. Values are a small closed set of variants -- Integer, Text, a
// nested Store (wrapped in MapValue) and a deferred expression (ExprValue)
// -- a sealed interface with one concrete type per case, rather than a
// hand-rolled union with manual tagging.
//
// Lookups traverse dotted paths ("a.b.c") by recursing into nested Stores. A
// sentinel key "+" holds an inherited "super-store": a local miss falls back
// to the super-store before failing, the same way a child file's map
// inherits from whatever it was @INCLUDEFILE'd into.
package store

import (
	"fmt"
	"strings"

	"github.com/fpga-compose/autosoc/internal/ast"
)

// SuperKey is the sentinel key under which an inherited store is attached.
const SuperKey = "+"

//go:generate go run golang.org/x/tools/cmd/stringer -type Kind -output kind_string.go

// Kind discriminates the Value variants.
type Kind uint8

const (
	KindInteger Kind = iota
	KindText
	KindMap
	KindExpr
)

// Value is the sealed interface implemented by the four leaf variants a
// Store may hold.
type Value interface {
	Kind() Kind
	fmt.Stringer

	sealed()
}

// Integer is a resolved numeric leaf.
type Integer int64

func (Integer) Kind() Kind        { return KindInteger }
func (v Integer) String() string  { return fmt.Sprintf("%d", int64(v)) }
func (Integer) sealed()           {}

// Text is a string leaf. It may still contain unresolved "@$(path)" /
// "@$[fmt](path)" interpolation sites; the evaluator rewrites Text values in
// place until none remain.
type Text string

func (Text) Kind() Kind       { return KindText }
func (v Text) String() string { return string(v) }
func (Text) sealed()          {}

// MapValue is a nested Store, always owned by its parent. Every Store child
// of kind Map is reachable from exactly one parent key (or is the root).
type MapValue struct {
	S *Store
}

func (MapValue) Kind() Kind       { return KindMap }
func (v MapValue) String() string { return fmt.Sprintf("map[%d keys]", v.S.Len()) }
func (MapValue) sealed()          {}

// ExprValue is a deferred arithmetic expression. The evaluator replaces it
// in place with an Integer once ast.IsDefined reports true for its Node.
type ExprValue struct {
	Node ast.Node
}

func (ExprValue) Kind() Kind       { return KindExpr }
func (v ExprValue) String() string { return v.Node.String() }
func (ExprValue) sealed()          {}

// entry is one insertion-ordered slot in a Store.
type entry struct {
	key   string
	value Value
}

// Store is an insertion-ordered key/value mapping. The zero value is a
// usable, empty, rootless Store.
type Store struct {
	index map[string]int // key -> index into order; an entry with an empty key is tombstoned
	order []entry

	root *Store // back-reference for absolute ("/...") paths; nil at the true root
}

// New creates an empty, rootless Store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Root returns the ultimate ancestor of s, following parent links created
// when sub-stores are inserted. A Store created with New and never nested
// is its own root.
func (s *Store) Root() *Store {
	if s.root == nil {
		return s
	}

	return s.root
}

// Keys returns the store's keys in insertion order. Tombstoned (deleted)
// keys are omitted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.order))

	for _, e := range s.order {
		if e.key != "" {
			keys = append(keys, e.key)
		}
	}

	return keys
}

// Len returns the number of live keys.
func (s *Store) Len() int { return len(s.Keys()) }

// Range calls f for every live, direct (non-recursive) key/value pair in s,
// in insertion order, stopping early if f returns false. Unlike Walk, Range
// never descends into nested Maps and never consults the super-store.
func (s *Store) Range(f func(key string, v Value) bool) {
	for _, e := range s.order {
		if e.key == "" {
			continue
		}

		if !f(e.key, e.value) {
			return
		}
	}
}

// Set replaces the value directly stored under key, in place (preserving
// insertion order). It is how the evaluator rewrites an Expr leaf to its
// reduced Integer.
func (s *Store) Set(key string, v Value) {
	s.setLocal(key, v)
}

// local returns the value stored directly under key in s, ignoring any
// super-store fallback.
func (s *Store) local(key string) (Value, bool) {
	if s.index == nil {
		return nil, false
	}

	idx, ok := s.index[key]
	if !ok || s.order[idx].key == "" {
		return nil, false
	}

	return s.order[idx].value, true
}

// setLocal assigns key to value directly in s, appending a new insertion
// slot if the key is new, overwriting in place if it already exists (so
// insertion order is preserved across updates -- this is what lets an Expr
// leaf be replaced by its reduced Integer without disturbing iteration
// order).
func (s *Store) setLocal(key string, value Value) {
	if s.index == nil {
		s.index = make(map[string]int)
	}

	if idx, ok := s.index[key]; ok && s.order[idx].key != "" {
		s.order[idx].value = value
		return
	}

	s.index[key] = len(s.order)
	s.order = append(s.order, entry{key: key, value: value})
}

// super returns the store's inherited super-store, if any.
func (s *Store) super() *Store {
	v, ok := s.local(SuperKey)
	if !ok {
		return nil
	}

	m, ok := v.(MapValue)
	if !ok {
		return nil
	}

	return m.S
}

// adopt makes s the parent of child, so that child.Root() and absolute
// ("/...") path resolution can find their way back to the top.
func (s *Store) adopt(child *Store) {
	child.root = s.Root()
}

// splitPath splits a dotted path into segments. A leading "/" or "." or
// "+." prefix on the whole path is returned separately as the path's mode.
type pathMode uint8

const (
	modeRelative pathMode = iota
	modeHere              // leading "."
	modeSuper             // leading "+."
	modeAbsolute          // leading "/"
)

func splitPath(path string) (pathMode, []string) {
	mode := modeRelative

	switch {
	case strings.HasPrefix(path, "/"):
		mode = modeAbsolute
		path = strings.TrimPrefix(path, "/")
	case strings.HasPrefix(path, "+."):
		mode = modeSuper
		path = strings.TrimPrefix(path, "+.")
	case strings.HasPrefix(path, "."):
		mode = modeHere
		path = strings.TrimPrefix(path, ".")
	}

	if path == "" {
		return mode, nil
	}

	return mode, strings.Split(path, ".")
}

// Lookup walks a dotted path through nested Maps, consulting each level's
// super-store on a local miss. The "/", "." and "+." path-mode prefixes
// apply to lookups the same way they do to inserts.
func (s *Store) Lookup(path string) (Value, bool) {
	mode, segs := splitPath(path)

	start := s

	switch mode {
	case modeAbsolute:
		start = s.Root()
	case modeSuper:
		if sup := s.super(); sup != nil {
			start = sup
		} else {
			return nil, false
		}
	case modeHere, modeRelative:
		start = s
	}

	if len(segs) == 0 {
		return MapValue{S: start}, true
	}

	return lookupSegments(start, segs)
}

func lookupSegments(s *Store, segs []string) (Value, bool) {
	seg := segs[0]
	rest := segs[1:]

	v, ok := s.local(seg)

	if !ok {
		if sup := s.super(); sup != nil {
			return lookupSegments(sup, segs)
		}

		return nil, false
	}

	if len(rest) == 0 {
		return v, true
	}

	m, ok := v.(MapValue)
	if !ok {
		return nil, false
	}

	return lookupSegments(m.S, rest)
}

// AsInt resolves path to an Integer, reporting ok=false if the path is
// missing, not yet reduced to an Integer, or not numeric.
func (s *Store) AsInt(path string) (int64, bool) {
	v, ok := s.Lookup(path)
	if !ok {
		return 0, false
	}

	i, ok := v.(Integer)

	return int64(i), ok
}

// AsText resolves path to a Text value.
func (s *Store) AsText(path string) (string, bool) {
	v, ok := s.Lookup(path)
	if !ok {
		return "", false
	}

	t, ok := v.(Text)

	return string(t), ok
}

// AsMap resolves path to a nested Store.
func (s *Store) AsMap(path string) (*Store, bool) {
	v, ok := s.Lookup(path)
	if !ok {
		return nil, false
	}

	m, ok := v.(MapValue)
	if !ok {
		return nil, false
	}

	return m.S, true
}

// Insert creates intermediate Maps for any missing path segments and sets
// the final segment to value. A leading "+" on the final segment marks the
// value for append-merge: a prior value at that key, if any, is combined
// with value per the merge rules in mergeValue; otherwise value is inserted
// plain.
func (s *Store) Insert(path string, value Value) error {
	mode, segs := splitPath(path)

	target := s

	switch mode {
	case modeAbsolute:
		target = s.Root()
	case modeSuper:
		target = target.superOrCreate()
	case modeHere, modeRelative:
		target = s
	}

	if len(segs) == 0 {
		return fmt.Errorf("store: insert: empty path")
	}

	return insertSegments(target, segs, value)
}

// superOrCreate returns the store's super-store, creating an empty one if
// none is attached yet.
func (s *Store) superOrCreate() *Store {
	if sup := s.super(); sup != nil {
		return sup
	}

	sup := New()
	s.adopt(sup)
	s.setLocal(SuperKey, MapValue{S: sup})

	return sup
}

func insertSegments(s *Store, segs []string, value Value) error {
	seg := segs[0]
	rest := segs[1:]

	append_ := false

	if len(rest) == 0 && strings.HasPrefix(seg, "+") {
		append_ = true
		seg = strings.TrimPrefix(seg, "+")
	}

	if seg == "" {
		return fmt.Errorf("store: insert: empty key segment")
	}

	if len(rest) == 0 {
		if append_ {
			if prior, ok := s.local(seg); ok {
				merged, err := mergeValue(prior, value)
				if err != nil {
					return err
				}

				s.setLocal(seg, merged)
				return nil
			}
		}

		s.setLocal(seg, value)

		return nil
	}

	child, ok := s.local(seg)

	var childStore *Store

	if ok {
		m, ok := child.(MapValue)
		if !ok {
			return fmt.Errorf("store: insert: %q is not a map", seg)
		}

		childStore = m.S
	} else {
		childStore = New()
		s.adopt(childStore)
		s.setLocal(seg, MapValue{S: childStore})
	}

	return insertSegments(childStore, rest, value)
}

// mergeValue combines a prior value with an incoming append-merge value:
// Text values are space-joined, Integer and Expr values are wrapped in a
// Binary '+' expression (since a prior Integer may itself still need to
// combine with a not-yet-reduced Expr), and anything else simply prefers
// the incoming value.
func mergeValue(prior, incoming Value) (Value, error) {
	switch p := prior.(type) {
	case Text:
		switch in := incoming.(type) {
		case Text:
			return Text(string(p) + " " + string(in)), nil
		default:
			return Text(string(p) + " " + incoming.String()), nil
		}
	case Integer:
		return ExprValue{Node: ast.NewBinary(ast.OpAdd, ast.NewNum(int64(p)), toNode(incoming))}, nil
	case ExprValue:
		return ExprValue{Node: ast.NewBinary(ast.OpAdd, p.Node, toNode(incoming))}, nil
	default:
		return incoming, nil
	}
}

func toNode(v Value) ast.Node {
	switch v := v.(type) {
	case Integer:
		return ast.NewNum(int64(v))
	case ExprValue:
		return v.Node
	default:
		// A Text or Map value being summed in is a caller error; fall back to
		// zero rather than panicking mid-merge.
		return ast.NewNum(0)
	}
}

// EnsureMap returns the nested Store at path, creating intermediate Maps as
// Insert would, but never assigning a leaf value at the final segment. It's
// how a caller obtains a handle on a sub-map itself -- e.g. the tokenizer's
// "@PREFIX=name" scoping, which needs the named sub-map to later attach an
// "@INCLUDEFILE"'d store as its super-store.
func (s *Store) EnsureMap(path string) (*Store, error) {
	mode, segs := splitPath(path)

	target := s

	switch mode {
	case modeAbsolute:
		target = s.Root()
	case modeSuper:
		target = target.superOrCreate()
	case modeHere, modeRelative:
		target = s
	}

	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("store: ensure map: empty key segment")
		}

		child, ok := target.local(seg)

		if ok {
			m, ok := child.(MapValue)
			if !ok {
				return nil, fmt.Errorf("store: ensure map: %q is not a map", seg)
			}

			target = m.S

			continue
		}

		childStore := New()
		target.adopt(childStore)
		target.setLocal(seg, MapValue{S: childStore})
		target = childStore
	}

	return target, nil
}

// AttachSuper sets s's super-store (the "+" child consulted on a local
// lookup miss) to other, deep-merging into any super-store already
// attached. This is how "@INCLUDEFILE" splices an included file's store in
// as an inherited parent rather than merging its keys directly into s.
func (s *Store) AttachSuper(other *Store) error {
	if other == nil {
		return nil
	}

	sup := s.superOrCreate()

	return sup.Merge(other)
}

// Merge deep-unions other into s. On a conflicting scalar key, the later
// (other's) value wins, unless the incoming key begins with "+", in which
// case the append-merge rule from Insert applies. Keys present only in
// other are copied over (adopting their sub-stores).
func (s *Store) Merge(other *Store) error {
	if other == nil {
		return nil
	}

	for _, e := range other.order {
		if e.key == "" {
			continue
		}

		key := e.key
		append_ := false

		if strings.HasPrefix(key, "+") && key != SuperKey {
			append_ = true
			key = strings.TrimPrefix(key, "+")
		}

		incomingMap, incomingIsMap := e.value.(MapValue)
		existing, exists := s.local(key)

		if incomingIsMap {
			var dst *Store

			if exists {
				existingMap, ok := existing.(MapValue)
				if !ok {
					return fmt.Errorf("store: merge: %q: map/scalar conflict", key)
				}

				dst = existingMap.S
			} else {
				dst = New()
				s.adopt(dst)
				s.setLocal(key, MapValue{S: dst})
			}

			if err := dst.Merge(incomingMap.S); err != nil {
				return err
			}

			continue
		}

		if append_ && exists {
			merged, err := mergeValue(existing, e.value)
			if err != nil {
				return err
			}

			s.setLocal(key, merged)

			continue
		}

		s.setLocal(key, e.value)
	}

	return nil
}

// Flatten recursively visits all nodes; for any Map whose child key "+"
// itself holds a Map, it copies each child of that inner map into the
// parent whenever the parent does not already have that key. It never
// overwrites an existing key -- super-store keys are *inherited*, not
// merged over.
func (s *Store) Flatten() {
	if sup := s.super(); sup != nil {
		sup.Flatten()

		for _, key := range sup.Keys() {
			if _, exists := s.local(key); !exists {
				v, _ := sup.local(key)
				s.setLocal(key, v)
			}
		}
	}

	for _, e := range s.order {
		if e.key == "" || e.key == SuperKey {
			continue
		}

		if m, ok := e.value.(MapValue); ok {
			m.S.Flatten()
		}
	}
}

// Clone deep-copies s, including every nested Store and every Expr's AST,
// so changes to the copy never reach the original.
func (s *Store) Clone() *Store {
	clone := New()

	for _, e := range s.order {
		if e.key == "" {
			continue
		}

		switch v := e.value.(type) {
		case MapValue:
			child := v.S.Clone()
			clone.adopt(child)
			clone.setLocal(e.key, MapValue{S: child})
		case ExprValue:
			clone.setLocal(e.key, ExprValue{Node: v.Node.DeepCopy()})
		default:
			clone.setLocal(e.key, v)
		}
	}

	return clone
}

// Walk performs a read-only, insertion-order pre-order traversal of s and
// every nested Store, calling visit(path, value) for each leaf and map
// node. It stops early if visit returns false. The "+" super-store key is
// visited like any other child; Walk does not implicitly flatten.
func (s *Store) Walk(visit func(path string, v Value) bool) {
	s.walk("", visit)
}

func (s *Store) walk(prefix string, visit func(path string, v Value) bool) bool {
	for _, e := range s.order {
		if e.key == "" {
			continue
		}

		path := e.key
		if prefix != "" {
			path = prefix + "." + e.key
		}

		if !visit(path, e.value) {
			return false
		}

		if m, ok := e.value.(MapValue); ok {
			if !m.S.walk(path, visit) {
				return false
			}
		}
	}

	return true
}
