package report

// Where everything that can go wrong ends up. Every pass appends to a Report
// and carries on; nothing downstream of the parser returns a Go error for a
// problem in the user's script.

import (
	"strings"

	"src.elv.sh/pkg/persistent/vector"

	"sunscript/source/text"
	"sunscript/source/token"
)

type Severity int

const (
	ERROR Severity = iota
	WARNING
)

type Error struct {
	ErrorId  string
	Message  string
	Severity Severity
	Range    token.Range
	Args     []any
}

// A Report is an append-only, stably ordered list of diagnostics. The backing
// store is a persistent vector, so a snapshot taken after one pass is not
// disturbed by appends made in the next.
type Report struct {
	diagnostics vector.Vector
	errorCount  int
}

func NewReport() *Report {
	return &Report{diagnostics: vector.Empty}
}

func (r *Report) Add(e *Error) {
	r.diagnostics = r.diagnostics.Conj(e)
	if e.Severity == ERROR {
		r.errorCount++
	}
}

func (r *Report) Len() int {
	return r.diagnostics.Len()
}

func (r *Report) ErrorCount() int {
	return r.errorCount
}

func (r *Report) HasErrors() bool {
	return r.errorCount > 0
}

// All returns the diagnostics in the order they were thrown.
func (r *Report) All() []*Error {
	result := make([]*Error, 0, r.diagnostics.Len())
	for it := r.diagnostics.Iterator(); it.HasElem(); it.Next() {
		result = append(result, it.Elem().(*Error))
	}
	return result
}

// Snapshot returns a Report sharing the same diagnostics but insulated from
// later appends.
func (r *Report) Snapshot() *Report {
	return &Report{diagnostics: r.diagnostics, errorCount: r.errorCount}
}

func (r *Report) String() string {
	var b strings.Builder
	for _, e := range r.All() {
		b.WriteString(Describe(e))
		b.WriteString("\n")
	}
	return b.String()
}

// Describe renders one diagnostic as file(line,col): error|warning: message.
func Describe(e *Error) string {
	sev := "error"
	if e.Severity == WARNING {
		sev = "warning"
	}
	return text.DescribePos(e.Range) + ": " + sev + ": " + e.Message
}
