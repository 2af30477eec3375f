package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/windlass/recurse/internal/config"
	"github.com/windlass/recurse/internal/llmclient"
	"github.com/windlass/recurse/internal/logger"
	"github.com/windlass/recurse/internal/repl"
	"github.com/windlass/recurse/internal/usage"
)

// LLMClient is the subset of llmclient.Client the loop needs, narrowed to
// an interface so tests can supply a deterministic mock.
type LLMClient interface {
	Generate(ctx context.Context, messages []llmclient.Message, model string) (llmclient.Result, error)
}

// REPL is the subset of repl.Session the loop needs.
type REPL interface {
	Execute(ctx context.Context, source string) (repl.ExecResult, error)
	Close() error
}

// REPLFactory builds a fresh REPL session for one agent run, wired with the
// given callback handler so llm_query inside it can recurse back into this
// package.
type REPLFactory func(ctx context.Context, handler repl.CallbackHandler) (REPL, error)

// Loop runs one agent's full step cycle to a terminal state. A child Loop
// is created per llm_query call at depth+1, sharing the same LLMClient,
// UsageTracker, log sink, and REPLFactory as its parent. Children hold no
// back-reference to their parent; the shared handles are the only things
// threaded down.
type Loop struct {
	cfg         config.Config
	depth       int
	runID       string
	parentRunID string

	client      LLMClient
	tracker     *usage.Tracker
	newREPL     REPLFactory
	logs        logger.Writer
	nowMillis   func() int64
}

// NewLoopOptions bundles the shared, depth-independent collaborators. Each
// recursive call to NewLoop only changes depth/runID/parentRunID.
type NewLoopOptions struct {
	Config      config.Config
	Client      LLMClient
	Tracker     *usage.Tracker
	REPLFactory REPLFactory
	Logs        logger.Writer
	NowMillis   func() int64
}

// NewLoop constructs a Loop for one agent at the given depth.
func NewLoop(opts NewLoopOptions, depth int, runID, parentRunID string) *Loop {
	now := opts.NowMillis
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Loop{
		cfg:         opts.Config,
		depth:       depth,
		runID:       runID,
		parentRunID: parentRunID,
		client:      opts.Client,
		tracker:     opts.Tracker,
		newREPL:     opts.REPLFactory,
		logs:        opts.Logs,
		nowMillis:   now,
	}
}

// Run executes query as the user's task for this agent and returns its
// terminal value (whatever it passed to FINAL/FINAL_VAR).
func (l *Loop) Run(ctx context.Context, query string) (any, error) {
	model := l.cfg.ModelFor(l.depth)
	isLeaf := l.depth >= l.cfg.MaxDepth

	log := logger.New(l.logs, l.runID, l.parentRunID, l.depth, l.cfg.MaxCallsPerSubagent)
	log.LogAgentStart(query, model)

	session, err := l.newREPL(ctx, l)
	if err != nil {
		log.LogAgentEnd("error", 0)
		return nil, fmt.Errorf("agent: start repl: %w", err)
	}
	defer session.Close()

	transcript := NewTranscript(promptFor(isLeaf))

	// Seed the REPL's `context` variable and run the automatic
	// exploration snippet before the model ever sees a turn, so its
	// first transcript message already shows the context's shape.
	setup := fmt.Sprintf("context = %s\n", pyStringLiteral(query))
	if _, err := session.Execute(ctx, setup); err != nil {
		log.LogAgentEnd("error", 0)
		return nil, fmt.Errorf("agent: seed context: %w", err)
	}

	step0, err := session.Execute(ctx, initialExplorationCode)
	if err != nil {
		log.LogAgentEnd("error", 0)
		return nil, fmt.Errorf("agent: run initial exploration: %w", err)
	}
	transcript.Append(llmclient.RoleUser, fmt.Sprintf(
		"Outputs will always be truncated to last %d characters.\ncode:\n```repl\n%s\n```\n\nOutput:\n%s",
		l.cfg.TruncateLen, initialExplorationCode, step0.Output,
	))

	// calls counts every model call (the budget the call limit binds);
	// stepIdx numbers only the call/execution pairs that actually ran
	// code, so step indices in the log stay contiguous from 0 even when
	// the model talks a turn away without a code block.
	stepIdx := 0
	for calls := 0; calls < l.cfg.MaxCallsPerSubagent; calls++ {
		llmCallStart := time.Now()
		result, err := l.client.Generate(ctx, transcript.Messages(), model)
		llmCallEnd := time.Now()
		if err != nil {
			log.LogAgentEnd("transport_error", stepIdx)
			return nil, fmt.Errorf("agent: generate: %w", err)
		}

		l.tracker.Add(toUsageRecord(result.Usage))
		if err := l.tracker.CheckBudgets(usage.Budgets{
			MaxMoneySpent:       l.cfg.MaxMoneySpent,
			MaxCompletionTokens: l.cfg.MaxCompletionTokens,
			MaxPromptTokens:     l.cfg.MaxPromptTokens,
		}); err != nil {
			log.LogAgentEnd("budget_exceeded", stepIdx)
			return nil, err
		}

		transcript.Append(llmclient.RoleAssistant, result.Content)

		code, ok := llmclient.ExtractCode(result.Content)
		if !ok {
			transcript.Append(llmclient.RoleUser, noCodeBlockReminder)
			continue
		}

		log.LogCodeGenerated(stepIdx, code, result.Reasoning, logger.FromRecord(toUsageRecord(result.Usage)), llmCallStart, llmCallEnd)

		execStart := time.Now()
		execResult, err := session.Execute(ctx, code)
		execEnd := time.Now()
		if err != nil {
			log.LogAgentEnd("error", stepIdx)
			return nil, fmt.Errorf("agent: execute step %d: %w", stepIdx, err)
		}

		log.LogExecutionResult(stepIdx, execResult.Output, execResult.HasError, execStart, execEnd)

		if execResult.TerminalSet {
			resultJSON, _ := json.Marshal(execResult.Terminal)
			log.LogFinalResult(string(resultJSON))
			log.LogAgentEnd("final", stepIdx+1)
			return execResult.Terminal, nil
		}

		truncated := TruncateText(execResult.Output, l.cfg.TruncateLen)
		transcript.Append(llmclient.RoleUser, fmt.Sprintf("Output: \n%s", truncated))
		stepIdx++
	}

	log.LogAgentEnd("call_limit_exceeded", stepIdx)
	return nil, &CallLimitExceeded{MaxCalls: l.cfg.MaxCallsPerSubagent}
}

// HandleLLMQuery implements repl.CallbackHandler: it is what llm_query
// inside this agent's REPL ultimately calls. It spawns a child Loop one
// depth deeper, runs it to completion, and returns its terminal value as a
// raw JSON blob for the subprocess to decode back into a native value.
func (l *Loop) HandleLLMQuery(ctx context.Context, queryContext string) (json.RawMessage, error) {
	if l.depth >= l.cfg.MaxDepth {
		return nil, &MaxDepthExceeded{Depth: l.depth, MaxDepth: l.cfg.MaxDepth}
	}

	childRunID := logger.GenerateRunID(l.nowMillis())
	child := NewLoop(NewLoopOptions{
		Config:      l.cfg,
		Client:      l.client,
		Tracker:     l.tracker,
		REPLFactory: l.newREPL,
		Logs:        l.logs,
		NowMillis:   l.nowMillis,
	}, l.depth+1, childRunID, l.runID)

	value, err := child.Run(ctx, queryContext)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal child result: %w", err)
	}
	return data, nil
}

func toUsageRecord(u llmclient.Usage) usage.Record {
	return usage.Record{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CachedTokens:     u.CachedTokens,
		ReasoningTokens:  u.ReasoningTokens,
		Cost:             u.Cost,
	}
}

// pyStringLiteral renders s as a Python string literal. JSON string
// syntax is a valid (and safe) Python string literal, so a round-trip
// through json.Marshal is all the escaping needed.
func pyStringLiteral(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
