// Package tokenize turns an input file's lines into Store insertions: a
// regex-driven line scanner rather than a hand-rolled
// character-by-character state machine.
package tokenize

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/fpga-compose/autosoc/internal/ast"
	"github.com/fpga-compose/autosoc/internal/diag"
	"github.com/fpga-compose/autosoc/internal/store"
)

// keyLine matches "@KEY", "@KEY=value", "@$KEY=expr" and "@+KEY=value",
// capturing the sigil ('$' or '+' or empty), the dotted key, and whatever
// follows an "=" (empty if there was none).
var keyLine = regexp.MustCompile(`^@(\$|\+)?([A-Za-z_][A-Za-z0-9_.]*)\s*(?:=(.*))?$`)

// IncludeResolver opens and fully tokenizes the file named by an
// "@INCLUDEFILE=path" directive, returning the store it parses to. A
// Tokenizer with no resolver configured reports an error for any
// "@INCLUDEFILE" it encounters rather than silently ignoring it:
// search-path file resolution belongs to the caller, so this package
// never opens a file itself.
type IncludeResolver func(path string) (*store.Store, error)

// Tokenizer reads one file's lines into Insert calls against a Store.
type Tokenizer struct {
	diags    *diag.Sink
	file     string
	resolver IncludeResolver
}

// New creates a Tokenizer that reports problems against file into diags.
func New(file string, diags *diag.Sink) *Tokenizer {
	return &Tokenizer{diags: diags, file: file}
}

// WithIncludeResolver attaches the callback used to resolve
// "@INCLUDEFILE=path" directives and returns t for chaining.
func (t *Tokenizer) WithIncludeResolver(r IncludeResolver) *Tokenizer {
	t.resolver = r
	return t
}

// Parse reads r line by line and returns the Store it builds.
//
// A line beginning with '#' is a comment. A line beginning with whitespace
// continues the previous @KEY's value, joined by a single space. Every
// other non-blank line must match keyLine; anything else is reported as a
// syntax error and skipped.
func (t *Tokenizer) Parse(r io.Reader) *store.Store {
	s := store.New()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	var pendingKey string
	var pendingSigil string
	var pendingValue strings.Builder
	haveValue := false
	prefix := ""

	flush := func() {
		if pendingKey == "" {
			return
		}

		t.insert(s, &prefix, pendingSigil, pendingKey, pendingValue.String(), haveValue)

		pendingKey = ""
		pendingValue.Reset()
		haveValue = false
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		if (line[0] == ' ' || line[0] == '\t') && pendingKey != "" {
			pendingValue.WriteByte(' ')
			pendingValue.WriteString(strings.TrimSpace(line))

			continue
		}

		flush()

		m := keyLine.FindStringSubmatch(line)
		if m == nil {
			t.diags.Errorf("tokenize", t.file, "line %d: malformed line %q", lineNo, line)
			continue
		}

		pendingSigil = m[1]
		pendingKey = m[2]
		haveValue = m[3] != "" || strings.Contains(line, "=")

		pendingValue.Reset()
		pendingValue.WriteString(strings.TrimSpace(m[3]))
	}

	flush()

	if err := scanner.Err(); err != nil {
		t.diags.Errorf("tokenize", t.file, "%s", err)
	}

	return s
}

// insert applies one fully-accumulated key/value pair to s. An empty
// sigil with no "=" declares a bare key with an empty Text value (the
// "@KEY" form, used for boolean-ish presence flags); "$" parses the
// value as an expression; "+" marks the key for append-merge, which
// Store.Insert implements via a literal leading "+" on the final path
// segment.
//
// Two keys are directives rather than ordinary insertions: "@PREFIX=name"
// updates *prefix so every following key nests under a sub-map named name
// of the file-level map; "@PREFIX=" with an empty value returns to
// file-level scope.
// "@INCLUDEFILE=path" resolves path via t.resolver and splices the result
// in as a super-store of the current scope.
func (t *Tokenizer) insert(s *store.Store, prefix *string, sigil, key, value string, haveValue bool) {
	if key == "PREFIX" {
		*prefix = value
		return
	}

	if key == "INCLUDEFILE" {
		t.include(s, *prefix, value)
		return
	}

	path := key
	if *prefix != "" {
		path = *prefix + "." + key
	}

	if sigil == "+" {
		path = appendPlus(path)
	}

	if !haveValue {
		if err := s.Insert(path, store.Text("")); err != nil {
			t.diags.Errorf("tokenize", t.file, "%s", err)
		}

		return
	}

	if sigil == "$" {
		node, err := ast.Parse(value)
		if err != nil {
			t.diags.Errorf("tokenize", t.file, "key %q: %s", key, err)
			return
		}

		if err := s.Insert(path, store.ExprValue{Node: node}); err != nil {
			t.diags.Errorf("tokenize", t.file, "%s", err)
		}

		return
	}

	if n, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64); err == nil && isBareInteger(value) {
		if err := s.Insert(path, store.Integer(n)); err != nil {
			t.diags.Errorf("tokenize", t.file, "%s", err)
		}

		return
	}

	if err := s.Insert(path, store.Text(value)); err != nil {
		t.diags.Errorf("tokenize", t.file, "%s", err)
	}
}

// include resolves an "@INCLUDEFILE=path" directive and splices the result
// in as a super-store of the current scope (the file-level store, or the
// sub-map named by an active "@PREFIX").
func (t *Tokenizer) include(s *store.Store, prefix, path string) {
	if t.resolver == nil {
		t.diags.Errorf("tokenize", t.file, "@INCLUDEFILE=%s: no include resolver configured", path)
		return
	}

	included, err := t.resolver(path)
	if err != nil {
		t.diags.Errorf("tokenize", t.file, "@INCLUDEFILE=%s: %s", path, err)
		return
	}

	scope := s

	if prefix != "" {
		scope, err = s.EnsureMap(prefix)
		if err != nil {
			t.diags.Errorf("tokenize", t.file, "@INCLUDEFILE=%s: %s", path, err)
			return
		}
	}

	if err := scope.AttachSuper(included); err != nil {
		t.diags.Errorf("tokenize", t.file, "@INCLUDEFILE=%s: %s", path, err)
	}
}

// appendPlus inserts a literal "+" in front of a dotted path's final
// segment, so Store.Insert's append-merge rule applies to it.
func appendPlus(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return "+" + key
	}

	return key[:idx+1] + "+" + key[idx+1:]
}

// isBareInteger reports whether value looks like a plain (optionally
// hex/binary-prefixed) integer literal, as opposed to text that merely
// happens to parse as one (e.g. "1_000", which strconv accepts with base 0).
func isBareInteger(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}

	i := 0
	if v[i] == '-' || v[i] == '+' {
		i++
	}

	if i >= len(v) {
		return false
	}

	for ; i < len(v); i++ {
		c := v[i]
		isDigit := c >= '0' && c <= '9'
		isHex := c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
		isSep := c == 'x' || c == 'X' || c == 'b' || c == 'B'

		if !isDigit && !isHex && !isSep {
			return false
		}
	}

	return true
}
