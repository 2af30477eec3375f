package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windlass/recurse/internal/agent"
	"github.com/windlass/recurse/internal/config"
	"github.com/windlass/recurse/internal/llmclient"
	"github.com/windlass/recurse/internal/logger"
	"github.com/windlass/recurse/internal/repl"
	"github.com/windlass/recurse/internal/usage"
)

// scriptedLLM replays one result per Generate call, across every agent in
// the tree: the parent consumes the first entries, a spawned child picks up
// wherever the sequence stands when its own first call lands.
type scriptedLLM struct {
	results []llmclient.Result
	calls   int
}

func (s *scriptedLLM) Generate(_ context.Context, _ []llmclient.Message, _ string) (llmclient.Result, error) {
	if s.calls >= len(s.results) {
		return llmclient.Result{Content: "```repl\nFINAL(None)\n```"}, nil
	}
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

// toyREPL recognizes the handful of snippets the scripted responses emit
// and produces the ExecResult a real interpreter would have, including
// recursing through the CallbackHandler for llm_query.
type toyREPL struct {
	handler repl.CallbackHandler
}

func toyFactory() agent.REPLFactory {
	return func(_ context.Context, handler repl.CallbackHandler) (agent.REPL, error) {
		return &toyREPL{handler: handler}, nil
	}
}

func (r *toyREPL) Close() error { return nil }

func (r *toyREPL) Execute(ctx context.Context, code string) (repl.ExecResult, error) {
	trimmed := strings.TrimSpace(code)
	switch {
	case strings.HasPrefix(trimmed, "context = "):
		return repl.ExecResult{}, nil
	case strings.Contains(code, "Context type"):
		return repl.ExecResult{Output: "Context type: <class 'str'>\nContext length: 12\n"}, nil
	case strings.Contains(trimmed, "llm_query("):
		start := strings.Index(trimmed, `llm_query("`) + len(`llm_query("`)
		end := strings.Index(trimmed[start:], `")`)
		raw, err := r.handler.HandleLLMQuery(ctx, trimmed[start:start+end])
		if err != nil {
			return repl.ExecResult{HasError: true, Output: "Traceback (most recent call last):\n" + err.Error()}, nil
		}
		var v any
		_ = json.Unmarshal(raw, &v)
		return repl.ExecResult{TerminalSet: true, Terminal: v}, nil
	case strings.HasPrefix(trimmed, "FINAL("):
		arg := strings.TrimSuffix(strings.TrimPrefix(trimmed, "FINAL("), ")")
		var v any
		if arg != "None" {
			_ = json.Unmarshal([]byte(arg), &v)
		}
		return repl.ExecResult{TerminalSet: true, Terminal: v}, nil
	case strings.Contains(trimmed, "1/0"):
		return repl.ExecResult{HasError: true, Output: "Traceback (most recent call last):\nZeroDivisionError: division by zero\n"}, nil
	case strings.Contains(trimmed, "print("):
		return repl.ExecResult{Output: "4\n"}, nil
	default:
		return repl.ExecResult{}, nil
	}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.MaxMoneySpent = 0
	cfg.MaxCompletionTokens = 0
	cfg.MaxPromptTokens = 0
	return cfg
}

func codeTurn(code string) llmclient.Result {
	return llmclient.Result{Content: "```repl\n" + code + "\n```"}
}

func runEngine(t *testing.T, cfg config.Config, llm *scriptedLLM, query string) (Result, []logger.Event, error) {
	t.Helper()
	dir := t.TempDir()
	res, err := Run(context.Background(), query, Options{
		Config:      cfg,
		LogDir:      dir,
		Client:      llm,
		REPLFactory: toyFactory(),
	})
	events := readLog(t, res.LogFile, dir)
	return res, events, err
}

func readLog(t *testing.T, logFile, dir string) []logger.Event {
	t.Helper()
	if logFile == "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		logFile = matches[0]
	}
	f, err := os.Open(logFile)
	require.NoError(t, err)
	defer f.Close()
	events, err := logger.ReadEvents(f)
	require.NoError(t, err)
	return events
}

func eventsOfType(events []logger.Event, typ logger.EventType) []logger.Event {
	var out []logger.Event
	for _, ev := range events {
		if ev.Event == typ {
			out = append(out, ev)
		}
	}
	return out
}

func parseEventTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := logger.ParseTime(s)
	require.NoError(t, err)
	return parsed
}

func TestRunTrivialFinal(t *testing.T) {
	llm := &scriptedLLM{results: []llmclient.Result{codeTurn("FINAL(42)")}}
	res, events, err := runEngine(t, testConfig(), llm, "Just call FINAL(42).")
	require.NoError(t, err)

	assert.Equal(t, float64(42), res.Results)
	assert.Equal(t, 1, llm.calls)
	assert.True(t, filepath.IsAbs(res.LogFile))

	assert.Len(t, eventsOfType(events, logger.EventCodeGenerated), 1)
	assert.Len(t, eventsOfType(events, logger.EventExecutionResult), 1)

	finals := eventsOfType(events, logger.EventFinalResult)
	require.Len(t, finals, 1)
	assert.Equal(t, "42", finals[0].Result)

	// final_result precedes agent_end, and agent_start precedes both.
	var order []logger.EventType
	for _, ev := range events {
		order = append(order, ev.Event)
	}
	assert.Equal(t, []logger.EventType{
		logger.EventAgentStart,
		logger.EventCodeGenerated,
		logger.EventExecutionResult,
		logger.EventFinalResult,
		logger.EventAgentEnd,
	}, order)
}

func TestRunTwoStepCompute(t *testing.T) {
	llm := &scriptedLLM{results: []llmclient.Result{
		codeTurn("x = 2+2\nprint(x)"),
		codeTurn("FINAL(4)"),
	}}
	res, events, err := runEngine(t, testConfig(), llm, "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, float64(4), res.Results)

	execs := eventsOfType(events, logger.EventExecutionResult)
	require.Len(t, execs, 2)
	assert.Contains(t, execs[0].Output, "4")
	require.NotNil(t, execs[0].HasError)
	assert.False(t, *execs[0].HasError)

	// Step indices are contiguous from 0, on both event kinds.
	for i, ev := range eventsOfType(events, logger.EventCodeGenerated) {
		require.NotNil(t, ev.Step)
		assert.Equal(t, i, *ev.Step)
	}
	for i, ev := range execs {
		require.NotNil(t, ev.Step)
		assert.Equal(t, i, *ev.Step)
	}

	// All four phase timestamps of step i precede llm_call_start of
	// step i+1.
	gens := eventsOfType(events, logger.EventCodeGenerated)
	step0End := parseEventTime(t, execs[0].Timestamps.ExecutionEnd)
	step1Start := parseEventTime(t, gens[1].Timestamps.LLMCallStart)
	assert.False(t, step1Start.Before(step0End))
}

func TestRunRecursion(t *testing.T) {
	llm := &scriptedLLM{results: []llmclient.Result{
		codeTurn(`sub = llm_query("count letters in 'hello'")` + "\nFINAL(sub)"),
		codeTurn("FINAL(5)"),
	}}
	res, events, err := runEngine(t, testConfig(), llm, "delegate this")
	require.NoError(t, err)
	assert.Equal(t, float64(5), res.Results)

	tree, err := logger.Reconstruct(events)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	root := tree.Roots[0]
	require.Len(t, root.Children, 1)
	child := root.Children[0]
	assert.Equal(t, 0, root.Depth)
	assert.Equal(t, 1, child.Depth)

	// The child's whole lifetime nests inside the parent step's
	// execution window.
	var execWindow *logger.Timestamps
	for _, ev := range root.Events {
		if ev.Event == logger.EventExecutionResult {
			execWindow = ev.Timestamps
		}
	}
	require.NotNil(t, execWindow)
	winStart := parseEventTime(t, execWindow.ExecutionStart)
	winEnd := parseEventTime(t, execWindow.ExecutionEnd)

	childStart := parseEventTime(t, eventsOfType(child.Events, logger.EventAgentStart)[0].Time)
	childEnd := parseEventTime(t, eventsOfType(child.Events, logger.EventAgentEnd)[0].Time)
	assert.False(t, childStart.Before(winStart))
	assert.False(t, childEnd.After(winEnd))
}

func TestRunBudgetTrip(t *testing.T) {
	cost := 0.01
	llm := &scriptedLLM{results: []llmclient.Result{
		{Content: "```repl\nFINAL(1)\n```", Usage: llmclient.Usage{Cost: &cost}},
	}}
	cfg := testConfig()
	cfg.MaxMoneySpent = 0.001

	res, events, err := runEngine(t, cfg, llm, "spend too much")
	require.Error(t, err)
	var be *usage.BudgetExceeded
	require.ErrorAs(t, err, &be)
	assert.Equal(t, usage.WhichCost, be.Which)

	// agent_end is still present; final_result is not. The partial
	// result still reports the usage that tripped the ceiling.
	assert.Len(t, eventsOfType(events, logger.EventAgentEnd), 1)
	assert.Empty(t, eventsOfType(events, logger.EventFinalResult))
	assert.Equal(t, 0.01, res.Usage.CostOrZero())
}

func TestRunCallLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCallsPerSubagent = 2
	llm := &scriptedLLM{results: []llmclient.Result{
		codeTurn("print('still working')"),
		codeTurn("print('still working')"),
	}}
	_, events, err := runEngine(t, cfg, llm, "never finish")
	require.Error(t, err)
	var cle *agent.CallLimitExceeded
	require.ErrorAs(t, err, &cle)

	assert.Len(t, eventsOfType(events, logger.EventCodeGenerated), 2)
	assert.Empty(t, eventsOfType(events, logger.EventFinalResult))
	ends := eventsOfType(events, logger.EventAgentEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "call_limit_exceeded", ends[0].Status)
}

func TestRunDepthLimitKeepsErrorAtCallSite(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 0
	llm := &scriptedLLM{results: []llmclient.Result{
		codeTurn(`sub = llm_query("anything")` + "\nFINAL(sub)"),
		codeTurn(`FINAL("gave up on delegating")`),
	}}
	res, events, err := runEngine(t, cfg, llm, "delegate at the floor")
	require.NoError(t, err)
	assert.Equal(t, "gave up on delegating", res.Results)

	// No child run was ever created; the only run in the log is the root.
	tree, terr := logger.Reconstruct(events)
	require.NoError(t, terr)
	require.Len(t, tree.Roots, 1)
	assert.Empty(t, tree.Roots[0].Children)

	execs := eventsOfType(events, logger.EventExecutionResult)
	require.NotEmpty(t, execs)
	require.NotNil(t, execs[0].HasError)
	assert.True(t, *execs[0].HasError)
	assert.Contains(t, execs[0].Output, "MAXIMUM DEPTH REACHED")
}

func TestRunErrorThenRecovery(t *testing.T) {
	llm := &scriptedLLM{results: []llmclient.Result{
		codeTurn("1/0"),
		codeTurn(`FINAL("recovered")`),
	}}
	res, events, err := runEngine(t, testConfig(), llm, "divide by zero then recover")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Results)

	execs := eventsOfType(events, logger.EventExecutionResult)
	require.Len(t, execs, 2)
	assert.False(t, *execs[1].HasError)
}

func TestRunEventTimesAreMonotonicPerRun(t *testing.T) {
	llm := &scriptedLLM{results: []llmclient.Result{
		codeTurn("x = 2+2\nprint(x)"),
		codeTurn("FINAL(4)"),
	}}
	_, events, err := runEngine(t, testConfig(), llm, "what is 2+2?")
	require.NoError(t, err)

	var prev time.Time
	for _, ev := range events {
		ts := parseEventTime(t, ev.Time)
		assert.False(t, ts.Before(prev), "event %s out of order", ev.Event)
		prev = ts
	}
}
