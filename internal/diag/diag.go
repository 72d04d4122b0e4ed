// Package diag implements the diagnostic sink shared by every stage of the
// composition pipeline.
//
// Every stage -- the store merge, the evaluator, the bus registry, the
// address assigner, the interrupt router -- reports problems into a single
// Sink instead of returning early. A Sink accumulates Diagnostics, tags each
// with the stage, and (where known) the component and file that produced it.
// At the end of a run, a non-zero error count sets the process exit code,
// but it never prevents the other stages from doing their best-effort work.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type Severity -output severity_string.go

// Severity classifies a Diagnostic. Order matters: HasErrors and Err treat
// every severity at or above Error as an error.
type Severity uint8

const (
	Warning Severity = iota
	Error
	Fatal
)

// Diagnostic is a single message produced by a pipeline stage.
type Diagnostic struct {
	Severity  Severity
	Stage     string // e.g. "eval", "bus", "addr", "intr"
	Component string // component (file-level map) name, if known
	File      string // source file origin, if known
	Message   string
}

func (d Diagnostic) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s", d.Stage, d.Severity)

	if d.Component != "" {
		fmt.Fprintf(&b, ": %s", d.Component)
	}

	if d.File != "" {
		fmt.Fprintf(&b, " (%s)", d.File)
	}

	fmt.Fprintf(&b, ": %s", d.Message)

	return b.String()
}

// Sink collects diagnostics for the duration of a pipeline run. The zero
// value is ready to use.
type Sink struct {
	diags []Diagnostic
}

// Warnf records a warning attributed to stage/component.
func (s *Sink) Warnf(stage, component, format string, args ...any) {
	s.add(Warning, stage, component, "", format, args...)
}

// Errorf records an error attributed to stage/component.
func (s *Sink) Errorf(stage, component, format string, args ...any) {
	s.add(Error, stage, component, "", format, args...)
}

// Fatalf records a fatal diagnostic. Callers are expected to stop the
// pipeline after recording one, since a Fatal means the process itself
// cannot continue (out of memory, an output path escaping the declared
// output directory, a mandatory input that can't be opened).
func (s *Sink) Fatalf(stage, component, format string, args ...any) {
	s.add(Fatal, stage, component, "", format, args...)
}

// ErrorAt and WarnAt additionally carry the originating file name.
func (s *Sink) ErrorAt(stage, component, file, format string, args ...any) {
	s.add(Error, stage, component, file, format, args...)
}

func (s *Sink) WarnAt(stage, component, file, format string, args ...any) {
	s.add(Warning, stage, component, file, format, args...)
}

func (s *Sink) add(sev Severity, stage, component, file, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Severity:  sev,
		Stage:     stage,
		Component: component,
		File:      file,
		Message:   fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns every diagnostic recorded so far, in recording order.
func (s *Sink) Diagnostics() []Diagnostic {
	return s.diags
}

// HasErrors reports whether any diagnostic at Error severity or above was
// recorded.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity >= Error {
			return true
		}
	}

	return false
}

// HasFatal reports whether a Fatal diagnostic was recorded.
func (s *Sink) HasFatal() bool {
	for _, d := range s.diags {
		if d.Severity == Fatal {
			return true
		}
	}

	return false
}

// Err joins every Error-or-above diagnostic into a single error, or returns
// nil if there were none. Callers that only care whether the run succeeded
// can use errors.Is/As against it.
func (s *Sink) Err() error {
	var errs []error

	for _, d := range s.diags {
		if d.Severity >= Error {
			dd := d
			errs = append(errs, dd)
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...)
}

// Merge appends another sink's diagnostics onto this one, preserving order.
func (s *Sink) Merge(other *Sink) {
	if other == nil {
		return
	}

	s.diags = append(s.diags, other.diags...)
}
