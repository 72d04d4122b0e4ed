// Package ast implements the expression language used for deferred,
// store-valued arithmetic: a small C-like grammar of binary, unary and
// ternary operators over integer literals and dotted identifiers.
//
// Every Node answers IsDefined (true iff every identifier leaf has been
// resolved to an integer) and Evaluate (meaningful only once IsDefined is
// true). Resolution against a store's scope stack is ResolveNames; it never
// mutates the tree's shape, only fills in an Ident's resolved value.
//
// The tree is a closed set of five concrete types behind the Node
// interface -- Num, Ident, Unary, Binary, Ternary -- one concrete type per
// case rather than a hand-tagged union.
package ast

import (
	"fmt"
)

// Resolver looks up a dotted identifier and returns its integer value, if
// known. Implementations live in package eval, which knows how to walk a
// scope stack of stores; ast itself has no notion of a store, which keeps
// this package free of any dependency on it.
type Resolver interface {
	Resolve(name string) (int64, bool)
}

// Node is the sealed AST interface.
type Node interface {
	fmt.Stringer

	// IsDefined reports whether every identifier leaf in the subtree has
	// been resolved.
	IsDefined() bool

	// Evaluate computes the node's value. It is only meaningful when
	// IsDefined reports true; callers that evaluate early get an undefined
	// result for any unresolved subtree (zero, by convention). Evaluate
	// also returns any warnings raised during evaluation -- notably,
	// division or modulo by zero, which evaluates to zero rather than
	// panicking.
	Evaluate() (int64, []string)

	// ResolveNames walks every Ident leaf in the subtree and asks r to
	// resolve any that aren't resolved yet. It does not mutate the tree's
	// shape, only an Ident's cached resolution.
	ResolveNames(r Resolver)

	// DeepCopy returns an independent copy of the subtree, used whenever a
	// Node is referenced from more than one place (e.g. append-merge
	// wrapping a prior Expr in a new Binary).
	DeepCopy() Node

	node()
}

// Op is an operator token, shared by Unary and Binary nodes (a given Op is
// only ever legal in one arity, enforced by the parser, not the type).
type Op uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type Op -output op_string.go

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpOr
	OpAnd
	OpXor
	OpNot    // bitwise ~ (unary)
	OpShl
	OpShr
	OpLogOr
	OpLogAnd
	OpLogNot // ! (unary)
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNeg // unary minus
)

// Num is an integer literal leaf. Always defined.
type Num struct {
	Value int64
}

func NewNum(v int64) *Num { return &Num{Value: v} }

func (*Num) node()                        {}
func (n *Num) IsDefined() bool             { return true }
func (n *Num) Evaluate() (int64, []string) { return n.Value, nil }
func (n *Num) ResolveNames(_ Resolver)     {}
func (n *Num) DeepCopy() Node              { return &Num{Value: n.Value} }
func (n *Num) String() string              { return fmt.Sprintf("%d", n.Value) }

// Ident is a dotted-path identifier leaf. It starts undefined; ResolveNames
// fills in resolved once the Resolver can answer for Name.
type Ident struct {
	Name     string
	resolved *int64
}

func NewIdent(name string) *Ident { return &Ident{Name: name} }

func (*Ident) node() {}

func (id *Ident) IsDefined() bool { return id.resolved != nil }

func (id *Ident) Evaluate() (int64, []string) {
	if id.resolved == nil {
		return 0, nil
	}

	return *id.resolved, nil
}

func (id *Ident) ResolveNames(r Resolver) {
	if id.resolved != nil {
		return
	}

	if v, ok := r.Resolve(id.Name); ok {
		val := v
		id.resolved = &val
	}
}

func (id *Ident) DeepCopy() Node {
	cp := &Ident{Name: id.Name}

	if id.resolved != nil {
		v := *id.resolved
		cp.resolved = &v
	}

	return cp
}

func (id *Ident) String() string {
	if id.resolved != nil {
		return fmt.Sprintf("%s(=%d)", id.Name, *id.resolved)
	}

	return id.Name
}

// Unary is a single-operand operator: bitwise complement, logical not, or
// arithmetic negation.
type Unary struct {
	Op    Op
	Child Node
}

func NewUnary(op Op, child Node) *Unary { return &Unary{Op: op, Child: child} }

func (*Unary) node()                    {}
func (u *Unary) IsDefined() bool        { return u.Child.IsDefined() }
func (u *Unary) ResolveNames(r Resolver) { u.Child.ResolveNames(r) }
func (u *Unary) DeepCopy() Node         { return &Unary{Op: u.Op, Child: u.Child.DeepCopy()} }

func (u *Unary) String() string {
	return fmt.Sprintf("(%s%s)", u.Op, u.Child)
}

func (u *Unary) Evaluate() (int64, []string) {
	v, warns := u.Child.Evaluate()

	switch u.Op {
	case OpNot:
		return ^v, warns
	case OpLogNot:
		return boolInt(v == 0), warns
	case OpNeg:
		return -v, warns
	default:
		return 0, append(warns, fmt.Sprintf("ast: unary: unknown operator %s", u.Op))
	}
}

// Binary is a two-operand operator.
type Binary struct {
	Op       Op
	Lhs, Rhs Node
}

func NewBinary(op Op, lhs, rhs Node) *Binary { return &Binary{Op: op, Lhs: lhs, Rhs: rhs} }

func (*Binary) node() {}

func (b *Binary) IsDefined() bool {
	return b.Lhs.IsDefined() && b.Rhs.IsDefined()
}

func (b *Binary) ResolveNames(r Resolver) {
	b.Lhs.ResolveNames(r)
	b.Rhs.ResolveNames(r)
}

func (b *Binary) DeepCopy() Node {
	return &Binary{Op: b.Op, Lhs: b.Lhs.DeepCopy(), Rhs: b.Rhs.DeepCopy()}
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Lhs, b.Op, b.Rhs)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}

func (b *Binary) Evaluate() (int64, []string) {
	l, lwarns := b.Lhs.Evaluate()
	r, rwarns := b.Rhs.Evaluate()
	warns := append(lwarns, rwarns...)

	switch b.Op {
	case OpAdd:
		return l + r, warns
	case OpSub:
		return l - r, warns
	case OpMul:
		return l * r, warns
	case OpDiv:
		if r == 0 {
			return 0, append(warns, "ast: division by zero")
		}

		return l / r, warns
	case OpMod:
		if r == 0 {
			return 0, append(warns, "ast: modulo by zero")
		}

		return l % r, warns
	case OpOr:
		return l | r, warns
	case OpAnd:
		return l & r, warns
	case OpXor:
		return l ^ r, warns
	case OpShl:
		return l << uint(r), warns
	case OpShr:
		return l >> uint(r), warns
	case OpLogOr:
		return boolInt(l != 0 || r != 0), warns
	case OpLogAnd:
		return boolInt(l != 0 && r != 0), warns
	case OpEq:
		return boolInt(l == r), warns
	case OpNe:
		return boolInt(l != r), warns
	case OpLt:
		return boolInt(l < r), warns
	case OpLe:
		return boolInt(l <= r), warns
	case OpGt:
		return boolInt(l > r), warns
	case OpGe:
		return boolInt(l >= r), warns
	default:
		return 0, append(warns, fmt.Sprintf("ast: binary: unknown operator %s", b.Op))
	}
}

// Ternary is the right-associative "cond ? then : else" operator.
type Ternary struct {
	Cond, Then, Else Node
}

func NewTernary(cond, then, els Node) *Ternary {
	return &Ternary{Cond: cond, Then: then, Else: els}
}

func (*Ternary) node() {}

func (t *Ternary) IsDefined() bool {
	return t.Cond.IsDefined() && t.Then.IsDefined() && t.Else.IsDefined()
}

func (t *Ternary) ResolveNames(r Resolver) {
	t.Cond.ResolveNames(r)
	t.Then.ResolveNames(r)
	t.Else.ResolveNames(r)
}

func (t *Ternary) DeepCopy() Node {
	return &Ternary{Cond: t.Cond.DeepCopy(), Then: t.Then.DeepCopy(), Else: t.Else.DeepCopy()}
}

func (t *Ternary) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", t.Cond, t.Then, t.Else)
}

func (t *Ternary) Evaluate() (int64, []string) {
	c, warns := t.Cond.Evaluate()

	if c != 0 {
		v, w := t.Then.Evaluate()
		return v, append(warns, w...)
	}

	v, w := t.Else.Evaluate()

	return v, append(warns, w...)
}

// IsDefined, Evaluate and ResolveNames as free functions are occasionally
// handy when a caller holds a Node rather than a concrete type; they're
// simply the interface methods.
func IsDefined(n Node) bool             { return n.IsDefined() }
func Evaluate(n Node) (int64, []string) { return n.Evaluate() }
func ResolveNames(n Node, r Resolver)   { n.ResolveNames(r) }
