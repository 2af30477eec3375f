// Package engine wires the agent loop, REPL subprocess factory, usage
// tracker, and JSONL log sink into the single embedding entry point:
// Run(query, config, prefix, verbose).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/windlass/recurse/internal/agent"
	"github.com/windlass/recurse/internal/config"
	"github.com/windlass/recurse/internal/llmclient"
	"github.com/windlass/recurse/internal/logger"
	"github.com/windlass/recurse/internal/repl"
	"github.com/windlass/recurse/internal/usage"
)

// Result is what Run returns: the root agent's terminal value, the
// cumulative usage across the whole tree, and the absolute path of the
// JSONL log for this invocation.
type Result struct {
	Results any
	Usage   usage.Record
	LogFile string
}

// Options configures one Run invocation.
type Options struct {
	Config  config.Config
	Prefix  string
	LogDir  string
	Verbose bool

	// Client and REPLFactory override the real transport and subprocess
	// factory. Embedders normally leave both nil; they exist so a host
	// (or a test) can drive the full engine against scripted
	// collaborators.
	Client      agent.LLMClient
	REPLFactory agent.REPLFactory
}

// Run executes a single root-agent task to completion.
func Run(ctx context.Context, query string, opts Options) (Result, error) {
	if opts.LogDir == "" {
		opts.LogDir = "./logs"
	}
	if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("engine: create log dir: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "run"
	}
	logPath := filepath.Join(opts.LogDir, fmt.Sprintf("%s_%d.jsonl", prefix, time.Now().UnixNano()/int64(time.Millisecond)))
	if abs, err := filepath.Abs(logPath); err == nil {
		logPath = abs
	}

	sink := logger.Open(logger.DefaultOptions(logPath))
	defer sink.Close()

	client := opts.Client
	if client == nil {
		real, err := llmclient.New(opts.Config.APIKey, opts.Config.BaseURL)
		if err != nil {
			return Result{}, fmt.Errorf("engine: construct llm client: %w", err)
		}
		client = real
	}

	tracker := usage.NewTracker()

	factory := opts.REPLFactory
	if factory == nil {
		factory = newSubprocessFactory(opts.Config)
	}

	rootRunID := logger.GenerateRunID(time.Now().UnixMilli())
	root := agent.NewLoop(agent.NewLoopOptions{
		Config:      opts.Config,
		Client:      client,
		Tracker:     tracker,
		REPLFactory: factory,
		Logs:        sink,
		NowMillis:   func() int64 { return time.Now().UnixMilli() },
	}, 0, rootRunID, "")

	if opts.Verbose {
		slog.Info("run starting", "run_id", rootRunID, "model", opts.Config.PrimaryAgent, "log", logPath)
	}

	value, err := root.Run(ctx, query)
	if err != nil {
		// The log file keeps the full trace; the returned error carries
		// the terminal kind for the embedder.
		return Result{Usage: tracker.Total(), LogFile: logPath}, fmt.Errorf("engine: root agent aborted: %w", err)
	}

	if opts.Verbose {
		slog.Info("run finished", "run_id", rootRunID,
			"prompt_tokens", tracker.TotalPromptTokens(),
			"completion_tokens", tracker.TotalCompletionTokens(),
			"cost", tracker.TotalCost())
	}

	return Result{
		Results: value,
		Usage:   tracker.Total(),
		LogFile: logPath,
	}, nil
}

// newSubprocessFactory returns an agent.REPLFactory that starts a real
// Python subprocess per agent. The per-execute timeout is set well above
// the sandbox default because a single execute may contain an llm_query
// whose child agent runs many model calls of its own before the parent's
// snippet can finish.
func newSubprocessFactory(cfg config.Config) agent.REPLFactory {
	sandbox := repl.DefaultSandboxConfig()
	sandbox.Timeout = 30 * time.Minute
	sandbox.Resources.CPUTimeLimitSec = 30 * 60
	return func(ctx context.Context, handler repl.CallbackHandler) (agent.REPL, error) {
		session, err := repl.NewSession(ctx, repl.Options{Sandbox: sandbox}, handler)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}
