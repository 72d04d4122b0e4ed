// Package eval implements the fixed-point evaluator: the loop that
// alternates AST resolution against the store with string interpolation of
// resolved values back into Text leaves, until a sweep changes nothing.
//
// The scope stack is a sequence of stores, root at the bottom, the map
// directly containing whatever identifier is being resolved ("here") on
// top. Name resolution applies four rules in order: a leading '.' looks
// in here only; a leading '+.' looks in here's super-store; a leading '/'
// looks at the stack's root; otherwise, here first, then the stack from
// top to bottom.
package eval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/store"
)

// maxSweeps bounds the fixed-point loop. Termination is expected anyway --
// each successful reduction strictly shrinks the set of unresolved sites --
// so the bound only exists so a bug in that argument produces a diagnostic
// instead of an infinite loop.
const maxSweeps = 1024

// Evaluator runs sweeps over a root store until it reaches a fixed point.
type Evaluator struct {
	diags *diag.Sink
}

// New creates an Evaluator that reports problems into diags.
func New(diags *diag.Sink) *Evaluator {
	return &Evaluator{diags: diags}
}

// Run sweeps root until a sweep changes nothing, or until maxSweeps is
// exceeded (reported as an error; any Expr or interpolation site still
// unresolved at that point is left un-substituted so downstream output is
// obviously broken). It returns the number of sweeps performed.
func (e *Evaluator) Run(root *store.Store) int {
	for sweep := 1; sweep <= maxSweeps; sweep++ {
		changed := e.sweep(root, nil)
		if !changed {
			return sweep
		}
	}

	e.diags.Errorf("eval", "", "evaluator did not reach a fixed point within %d sweeps", maxSweeps)

	return maxSweeps
}

// sweep performs one pass over here and its descendants, with stack holding
// every ancestor from root down to (but not including) here. It returns
// true if any Expr reduced or any Text value changed.
func (e *Evaluator) sweep(here *store.Store, stack []*store.Store) bool {
	changed := false

	type update struct {
		key string
		val store.Value
	}

	var updates []update

	here.Range(func(key string, v store.Value) bool {
		switch val := v.(type) {
		case store.ExprValue:
			r := &scopeResolver{here: here, stack: stack}
			val.Node.ResolveNames(r)

			if val.Node.IsDefined() {
				n, warns := val.Node.Evaluate()

				for _, w := range warns {
					e.diags.Warnf("eval", "", "%s", w)
				}

				updates = append(updates, update{key: key, val: store.Integer(n)})
				changed = true
			}

		case store.Text:
			next, did := e.interpolate(string(val), here, stack)
			if did {
				updates = append(updates, update{key: key, val: store.Text(next)})
				changed = true
			}

		case store.MapValue:
			childStack := append(append([]*store.Store{}, stack...), here)
			if e.sweep(val.S, childStack) {
				changed = true
			}

			if e.deriveExprKeys(val.S) {
				changed = true
			}
		}

		return true
	})

	for _, u := range updates {
		here.Set(u.key, u.val)
	}

	return changed
}

// scopeResolver implements ast.Resolver. store.Lookup already handles the
// '.', '+.' and '/' path-mode prefixes, so scopeResolver only has to add
// the here-then-stack search for a plain name.
type scopeResolver struct {
	here  *store.Store
	stack []*store.Store
}

func hasPathMode(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "+.") || strings.HasPrefix(name, "/")
}

func (r *scopeResolver) Resolve(name string) (int64, bool) {
	if hasPathMode(name) {
		v, ok := r.here.Lookup(name)
		return asInt(v, ok)
	}

	if v, ok := r.here.Lookup(name); ok {
		if n, ok := asInt(v, true); ok {
			return n, true
		}
	}

	for i := len(r.stack) - 1; i >= 0; i-- {
		if v, ok := r.stack[i].Lookup(name); ok {
			if n, ok := asInt(v, true); ok {
				return n, true
			}
		}
	}

	return 0, false
}

func asInt(v store.Value, ok bool) (int64, bool) {
	if !ok {
		return 0, false
	}

	switch vv := v.(type) {
	case store.Integer:
		return int64(vv), true
	case store.ExprValue:
		if vv.Node.IsDefined() {
			n, _ := vv.Node.Evaluate()
			return n, true
		}

		return 0, false
	case store.MapValue:
		// A map stands in for its own reduced value: its VAL, or its EXPR
		// once that has become an Integer.
		if n, ok := vv.S.AsInt("VAL"); ok {
			return n, true
		}

		if n, ok := vv.S.AsInt("EXPR"); ok {
			return n, true
		}

		return 0, false
	default:
		return 0, false
	}
}

// deriveExprKeys fills in a map's derived VAL and STR keys once its EXPR
// leaf has reduced to an Integer: VAL carries the integer, STR its textual
// rendering via the map's FORMAT (printf-style) when present, decimal
// otherwise. A map with no EXPR, or one whose STR already exists, is left
// alone.
func (e *Evaluator) deriveExprKeys(m *store.Store) bool {
	exprV, ok := m.Lookup("EXPR")
	if !ok {
		return false
	}

	if _, ok := m.Lookup("STR"); ok {
		return false
	}

	changed := false

	if _, haveVal := m.AsInt("VAL"); !haveVal {
		if n, isInt := exprV.(store.Integer); isInt {
			m.Set("VAL", n)
			changed = true
		}
	}

	if n, haveVal := m.AsInt("VAL"); haveVal {
		format, _ := m.AsText("FORMAT")

		if format != "" {
			m.Set("STR", store.Text(fmt.Sprintf(format, n)))
		} else {
			m.Set("STR", store.Text(strconv.FormatInt(n, 10)))
		}

		changed = true
	}

	return changed
}

// interpSite matches "@$(path)" and "@$[format](path)".
var interpSite = regexp.MustCompile(`@\$(?:\[([^\]]*)\])?\(([^()]+)\)`)

// interpolate resolves every substitution site in text against here/stack
// in one left-to-right pass, leaving unresolved sites untouched. A
// substitution's own result may itself contain a substitutable site;
// rather than re-scanning within the same pass, that's picked up on the
// next sweep, the same way a nested Expr reduction is.
func (e *Evaluator) interpolate(text string, here *store.Store, stack []*store.Store) (string, bool) {
	changed := false

	result := interpSite.ReplaceAllStringFunc(text, func(m string) string {
		sub := interpSite.FindStringSubmatch(m)
		format, path := sub[1], sub[2]

		repl, ok := e.resolveInterp(path, format, here, stack)
		if !ok {
			return m
		}

		changed = true

		return repl
	})

	return result, changed
}

func (e *Evaluator) resolveInterp(path, format string, here *store.Store, stack []*store.Store) (string, bool) {
	v, ok := here.Lookup(path)

	if !ok && !hasPathMode(path) {
		for i := len(stack) - 1; i >= 0 && !ok; i-- {
			v, ok = stack[i].Lookup(path)
		}
	}

	if !ok {
		return "", false
	}

	switch vv := v.(type) {
	case store.Integer:
		if format != "" {
			return fmt.Sprintf(format, int64(vv)), true
		}

		return strconv.FormatInt(int64(vv), 10), true
	case store.Text:
		return string(vv), true
	case store.ExprValue:
		if vv.Node.IsDefined() {
			n, _ := vv.Node.Evaluate()
			if format != "" {
				return fmt.Sprintf(format, n), true
			}

			return strconv.FormatInt(n, 10), true
		}

		return "", false
	case store.MapValue:
		// A map interpolates as its derived STR, or failing that its VAL.
		if s, ok := vv.S.AsText("STR"); ok {
			return s, true
		}

		if n, ok := vv.S.AsInt("VAL"); ok {
			if format != "" {
				return fmt.Sprintf(format, n), true
			}

			return strconv.FormatInt(n, 10), true
		}

		return "", false
	default:
		return "", false
	}
}
