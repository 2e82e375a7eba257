package report_test

import (
	"strings"
	"testing"

	"sunscript/source/report"
	"sunscript/source/token"
)

func rng(line, col int) token.Range {
	return token.Range{Source: "t.sc", Begin: token.Pos{Line: line, Col: col}, End: token.Pos{Line: line, Col: col + 1}}
}

func TestOrderIsStable(t *testing.T) {
	rep := report.NewReport()
	for i := 1; i <= 5; i++ {
		rep.Add(&report.Error{ErrorId: "e", Message: "m", Severity: report.ERROR, Range: rng(i, 1)})
	}
	all := rep.All()
	for i, e := range all {
		if e.Range.Begin.Line != i+1 {
			t.Fatalf("diagnostic %d is out of order", i)
		}
	}
}

func TestSnapshotIsInsulated(t *testing.T) {
	rep := report.NewReport()
	rep.Add(&report.Error{ErrorId: "a", Severity: report.ERROR, Range: rng(1, 1)})
	snap := rep.Snapshot()
	rep.Add(&report.Error{ErrorId: "b", Severity: report.WARNING, Range: rng(2, 1)})
	if snap.Len() != 1 {
		t.Fatalf("snapshot grew to %d entries", snap.Len())
	}
	if rep.Len() != 2 {
		t.Fatalf("report has %d entries, want 2", rep.Len())
	}
}

func TestCounting(t *testing.T) {
	rep := report.NewReport()
	rep.Add(&report.Error{Severity: report.ERROR, Range: rng(1, 1)})
	rep.Add(&report.Error{Severity: report.WARNING, Range: rng(2, 1)})
	if !rep.HasErrors() || rep.ErrorCount() != 1 || rep.Len() != 2 {
		t.Fatalf("counts wrong: len %d, errors %d", rep.Len(), rep.ErrorCount())
	}
}

func TestDescribeFormat(t *testing.T) {
	e := &report.Error{Message: "something is off", Severity: report.ERROR, Range: rng(3, 7)}
	got := report.Describe(e)
	if got != "t.sc(3,7): error: something is off" {
		t.Fatalf("described as %q", got)
	}
	e.Severity = report.WARNING
	if !strings.Contains(report.Describe(e), ": warning: ") {
		t.Fatalf("warning not marked as such")
	}
}
