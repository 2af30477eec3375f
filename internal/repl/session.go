package repl

import (
	"context"
	"encoding/json"
	"fmt"
)

// Session is the per-agent code-execution environment: persistent globals
// and locals across every Execute call within one agent's lifetime, backed
// by one Manager-owned subprocess. The host only ever calls NewSession,
// Execute, and Close — the FINAL/llm_query builtins live inside the
// subprocess.
type Session struct {
	mgr *Manager
}

// NewSession starts a fresh subprocess for one agent.
func NewSession(ctx context.Context, opts Options, handler CallbackHandler) (*Session, error) {
	mgr, err := NewManager(opts)
	if err != nil {
		return nil, err
	}
	mgr.SetCallbackHandler(handler)
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return &Session{mgr: mgr}, nil
}

// ExecResult is the outcome of running one code snippet: captured
// stdout+stderr (including any uncaught exception's formatted traceback),
// whether that output looked like an error, and the terminal value if
// FINAL/FINAL_VAR was invoked during this call.
type ExecResult struct {
	Output      string
	HasError    bool
	TerminalSet bool
	Terminal    any
}

// Execute runs source as a script body against the session's persistent
// globals/locals and reports what happened.
func (s *Session) Execute(ctx context.Context, source string) (ExecResult, error) {
	raw, err := s.mgr.Execute(ctx, source)
	if err != nil {
		return ExecResult{}, fmt.Errorf("repl session: %w", err)
	}

	res := ExecResult{
		Output:      raw.Output,
		HasError:    raw.HasError,
		TerminalSet: raw.TerminalSet,
	}
	if raw.TerminalSet && len(raw.TerminalValue) > 0 {
		var v any
		if err := json.Unmarshal(raw.TerminalValue, &v); err != nil {
			// A repr() fallback from the subprocess already arrives as
			// a JSON string and decodes above; this branch catches
			// text Go's decoder rejects (such as Python's NaN or
			// Infinity) and surfaces it as the raw string rather than
			// failing the whole step over it.
			var s string
			if uerr := json.Unmarshal(raw.TerminalValue, &s); uerr == nil {
				v = s
			} else {
				v = string(raw.TerminalValue)
			}
		}
		res.Terminal = v
	}
	return res, nil
}

// Close stops the subprocess.
func (s *Session) Close() error {
	return s.mgr.Stop()
}
