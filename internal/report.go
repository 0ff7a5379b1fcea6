package internal

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type Severity int

const (
	SevError Severity = iota
	SevWarning
)

type Report struct {
	Severity Severity
	Pos      Position
	Msg      string
}

// Reporter collects diagnostics for a compile and prints them as they arrive.
type Reporter struct {
	out      io.Writer
	noWarn   bool
	verbose  bool
	sources  map[string][]string
	reports  []Report
	errCount int
}

func NewReporter(out io.Writer, noWarn bool, verbose bool) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out, noWarn: noWarn, verbose: verbose, sources: make(map[string][]string)}
}

func (r *Reporter) addSource(file string, text string) {
	r.sources[file] = strings.Split(text, "\n")
}

func (r *Reporter) Error(err error) {
	r.errCount++
	var diag Diagnostic
	if !errors.As(err, &diag) {
		r.reports = append(r.reports, Report{Severity: SevError, Msg: err.Error()})
		fmt.Fprintf(r.out, "idlc: %s\n", err.Error())
		return
	}
	r.emit(Report{Severity: SevError, Pos: diag.Position(), Msg: diag.Message()})
}

func (r *Reporter) Warn(pos Position, format string, args ...any) {
	if r.noWarn {
		return
	}
	r.emit(Report{Severity: SevWarning, Pos: pos, Msg: "warning: " + fmt.Sprintf(format, args...)})
}

func (r *Reporter) Infof(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, format+"\n", args...)
	}
}

func (r *Reporter) HasErrors() bool {
	return r.errCount > 0
}

func (r *Reporter) ErrorCount() int {
	return r.errCount
}

func (r *Reporter) Reports() []Report {
	return r.reports
}

// Messages lists every report as "<line>: <message>", which keeps tests readable.
func (r *Reporter) Messages() []string {
	var msgs []string
	for _, rep := range r.reports {
		msgs = append(msgs, fmt.Sprintf("%d: %s", rep.Pos.Line, rep.Msg))
	}
	return msgs
}

func (r *Reporter) emit(rep Report) {
	r.reports = append(r.reports, rep)
	fmt.Fprintf(r.out, "%s:%d: %s\n", rep.Pos.File, rep.Pos.Line, rep.Msg)
	r.displaySelection(rep.Pos)
}

// displaySelection prints the offending source line with a caret under the column.
func (r *Reporter) displaySelection(pos Position) {
	lines, ok := r.sources[pos.File]
	if !ok || pos.Line < 1 || pos.Line > len(lines) {
		return
	}
	line := strings.TrimRight(lines[pos.Line-1], "\r")
	fmt.Fprintln(r.out, line)

	var sb strings.Builder
	for i, ch := range line {
		if i >= pos.Col-1 {
			break
		}
		if ch == '\t' {
			sb.WriteRune('\t')
		} else {
			sb.WriteRune(' ')
		}
	}
	sb.WriteRune('^')
	fmt.Fprintln(r.out, sb.String())
}
