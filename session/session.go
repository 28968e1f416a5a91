// Package session bundles the state shared by one compiler run: the symbol
// table, the block builder and the diagnostic reporter. Independent runs use
// independent sessions, or Reset one between runs.
package session

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/tabby/check"
	"github.com/chazu/tabby/diag"
	"github.com/chazu/tabby/ir"
	"github.com/chazu/tabby/symbol"
	"github.com/chazu/tabby/types"
)

func logger() commonlog.Logger { return commonlog.GetLogger("tabby.session") }

// Session is the context of one compiler run.
type Session struct {
	ID          uuid.UUID
	Symbols     *symbol.Table
	Blocks      *ir.Builder
	Diagnostics *diag.Reporter
}

// New creates a session whose diagnostics are written to out.
func New(out io.Writer) *Session {
	s := &Session{
		ID:          uuid.New(),
		Symbols:     symbol.NewTable(),
		Blocks:      ir.NewBuilder(),
		Diagnostics: diag.NewReporter(out),
	}
	logger().Debugf("session %s started", s.ID)
	return s
}

// Reset forgets all interned symbols, restarts block identities and clears
// the error flag, then takes a fresh run id.
func (s *Session) Reset() {
	s.Symbols.Reset()
	s.Blocks.Reset()
	s.Diagnostics.Reset()
	old := s.ID
	s.ID = uuid.New()
	logger().Debugf("session %s reset as %s", old, s.ID)
}

// Intern is shorthand for s.Symbols.Intern.
func (s *Session) Intern(name string) *symbol.Symbol {
	return s.Symbols.Intern(name)
}

// HasErrors reports whether any diagnostic was issued in this run.
func (s *Session) HasErrors() bool {
	return s.Diagnostics.HasErrors()
}

// Checker returns the root type-checking context for a body in file, with
// text used to locate diagnostics.
func (s *Session) Checker(file string, text []byte, returnType types.Type, opts ...check.Option) *check.Context {
	return check.NewContext(returnType, s.Diagnostics.File(file, text), opts...)
}

// Link builds the program rooted at entry and runs cleanup on it. It
// refuses to link a run that already reported source errors.
func (s *Session) Link(entry types.CodeSignature, code ir.Code) (*ir.Program, error) {
	if s.HasErrors() {
		return nil, &SourceErrors{Count: s.Diagnostics.ErrorCount()}
	}
	p, err := ir.NewProgram(entry, code)
	if err != nil {
		logger().Errorf("session %s: %v", s.ID, err)
		return nil, err
	}
	return p, nil
}

// SourceErrors is returned by Link when diagnostics were reported.
type SourceErrors struct {
	Count int
}

func (e *SourceErrors) Error() string {
	if e.Count == 1 {
		return "1 error reported; not linking"
	}
	return fmt.Sprintf("%d errors reported; not linking", e.Count)
}
