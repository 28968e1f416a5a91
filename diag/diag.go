// Package diag reports source-level diagnostics.
//
// A Reporter is shared by a whole compiler run and remembers whether any
// error was reported. Each source file gets a Sink that turns byte offsets
// into line and column numbers.
package diag

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tliron/commonlog"
)

// logger is looked up on use so a backend installed after init still applies.
func logger() commonlog.Logger { return commonlog.GetLogger("tabby.diag") }

// Reporter is the run-wide diagnostic destination.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	count int
}

// NewReporter creates a reporter writing diagnostic lines to out.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out}
}

// HasErrors reports whether any diagnostic was reported since the last Reset.
func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

// ErrorCount returns the number of diagnostics reported since the last Reset.
func (r *Reporter) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Reset clears the error flag.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
}

// File returns a sink for diagnostics about the named source file.
// text is used only to compute line and column numbers and may be nil.
func (r *Reporter) File(name string, text []byte) *Sink {
	s := &Sink{reporter: r, name: name}
	for i, b := range text {
		if b == '\n' {
			s.newlines = append(s.newlines, i)
		}
	}
	return s
}

func (r *Reporter) write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	// The flag is set even if the writer fails; losing the text is not fatal.
	if _, err := io.WriteString(r.out, line); err != nil {
		logger().Warningf("cannot write diagnostic: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Sink: diagnostics for one file
// ---------------------------------------------------------------------------

// Sink reports diagnostics about a single source file.
type Sink struct {
	reporter *Reporter
	name     string
	newlines []int // offsets of '\n' in the source, ascending
}

// Name returns the file name used in diagnostic lines.
func (s *Sink) Name() string { return s.name }

// Reporter returns the run-wide reporter s writes to.
func (s *Sink) Reporter() *Reporter { return s.reporter }

// Position converts a byte offset into a 1-based line number and the
// distance from the preceding newline (or from the start of the file,
// counting the first byte as column 1).
func (s *Sink) Position(pos int) (line, column int) {
	// Number of newlines strictly before pos.
	n := sort.SearchInts(s.newlines, pos)
	prev := -1
	if n > 0 {
		prev = s.newlines[n-1]
	}
	return n + 1, pos - prev
}

// Report writes one diagnostic line and marks the run as failed.
// A negative pos means the message has no source position.
func (s *Sink) Report(pos int, message string) {
	var buf bytes.Buffer
	if pos < 0 {
		fmt.Fprintf(&buf, "%s::: %s\n", s.name, message)
	} else {
		line, column := s.Position(pos)
		fmt.Fprintf(&buf, "%s::%d.%d: %s\n", s.name, line, column, message)
	}
	logger().Debugf("diagnostic: %s", bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	s.reporter.write(buf.String())
}

// Reportf is Report with a formatted message.
func (s *Sink) Reportf(pos int, format string, args ...any) {
	s.Report(pos, fmt.Sprintf(format, args...))
}
