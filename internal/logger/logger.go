package logger

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// GenerateRunID produces a short, sortable, collision-resistant
// identifier: a millisecond timestamp so run ids naturally sort
// chronologically, plus a random suffix so two agents started in the same
// millisecond never collide.
func GenerateRunID(nowMillis int64) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%d-%x", nowMillis, buf[:])
}

// Writer is the subset of lumberjack.Logger this package depends on,
// allowing tests to substitute an in-memory sink.
type Writer interface {
	io.Writer
}

// Logger appends one JSON object per line describing a single agent's
// lifecycle: its start, each generated-code/execution-result step pair, its
// final result (if any), and its end. Every Log* method flushes its write
// synchronously so a crash mid-run leaves a truncated-but-parseable file
// rather than a buffered line lost in a kernel buffer.
type Logger struct {
	mu          sync.Mutex
	w           Writer
	runID       string
	parentRunID string
	depth       int
	maxSteps    int
	now         func() time.Time
}

// Options configures a rotating JSONL file sink. Path is the target file;
// when a long recursive run's log would otherwise grow without bound, the
// lumberjack-backed writer rotates it instead of truncating it, keeping up
// to MaxBackups rotated files for at most MaxAgeDays.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultOptions keeps the single-file-per-run convention with rotation
// bounds for runs whose event stream outgrows one file.
func DefaultOptions(path string) Options {
	return Options{
		Path:       path,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// Open creates a rotating JSONL sink at opts.Path and returns a writer
// suitable for New. The caller is responsible for closing it via Close.
func Open(opts Options) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// New builds a Logger for one agent. runID identifies this agent's own
// events; parentRunID is empty for the root agent and is back-filled by the
// reconstruction step for any run whose parent event was written after its
// child's (never true for a single writer, but kept tolerant for
// multi-process deployments).
func New(w Writer, runID, parentRunID string, depth, maxSteps int) *Logger {
	return &Logger{
		w:           w,
		runID:       runID,
		parentRunID: parentRunID,
		depth:       depth,
		maxSteps:    maxSteps,
		now:         time.Now,
	}
}

// isoMillisLayout is ISO-8601 UTC with millisecond precision, the format
// the log-file contract fixes for every time field in every record.
const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in the log's wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoMillisLayout)
}

// ParseTime is the inverse of FormatTime, for consumers reconstructing
// timing from a parsed log.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(isoMillisLayout, s)
}

func (l *Logger) write(ev Event) {
	if ev.Level == "" {
		ev.Level = "info"
	}
	ev.Time = FormatTime(l.now())
	ev.RunID = l.runID
	ev.ParentRunID = l.parentRunID
	ev.Depth = l.depth

	l.mu.Lock()
	defer l.mu.Unlock()
	line, err := json.Marshal(ev)
	if err != nil {
		// A marshal failure here means a programming error (an
		// unencodable field), not a runtime condition; there is no
		// sensible recovery, so drop the line rather than panic the
		// agent loop over logging.
		return
	}
	line = append(line, '\n')
	_, _ = l.w.Write(line)
}

// LogAgentStart records the beginning of this agent's run.
func (l *Logger) LogAgentStart(query, model string) {
	l.write(Event{
		Event:    EventAgentStart,
		Query:    query,
		Model:    model,
		MaxSteps: l.maxSteps,
	})
}

// LogCodeGenerated records the code extracted from step's model response,
// along with the reasoning trace, usage, and the LLM-call half of the
// step's timestamp quad.
func (l *Logger) LogCodeGenerated(step int, code, reasoning string, u *Usage, callStart, callEnd time.Time) {
	millis := callEnd.Sub(callStart).Milliseconds()
	l.write(Event{
		Event:     EventCodeGenerated,
		Step:      &step,
		Code:      code,
		Reasoning: reasoning,
		Usage:     u,
		LLMMillis: &millis,
		Timestamps: &Timestamps{
			LLMCallStart: FormatTime(callStart),
			LLMCallEnd:   FormatTime(callEnd),
		},
	})
}

// LogExecutionResult records the REPL's output for step, whether it looked
// like an error, and the execution half of the step's timestamp quad.
func (l *Logger) LogExecutionResult(step int, output string, hasError bool, execStart, execEnd time.Time) {
	millis := execEnd.Sub(execStart).Milliseconds()
	l.write(Event{
		Event:      EventExecutionResult,
		Step:       &step,
		Output:     output,
		HasError:   &hasError,
		ExecMillis: &millis,
		Timestamps: &Timestamps{
			ExecutionStart: FormatTime(execStart),
			ExecutionEnd:   FormatTime(execEnd),
		},
	})
}

// LogFinalResult records the value the agent terminated with via
// FINAL/FINAL_VAR.
func (l *Logger) LogFinalResult(result string) {
	l.write(Event{
		Event:  EventFinalResult,
		Result: result,
	})
}

// LogAgentEnd records the terminal status of this agent's run: "final",
// "call_limit_exceeded", "budget_exceeded", "transport_error", or
// "error".
func (l *Logger) LogAgentEnd(status string, totalSteps int) {
	l.write(Event{
		Event:      EventAgentEnd,
		Status:     status,
		TotalSteps: totalSteps,
	})
}

// RunID returns the identifier this logger stamps on every event.
func (l *Logger) RunID() string { return l.runID }
