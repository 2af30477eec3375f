package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/windlass/recurse/internal/config"
	"github.com/windlass/recurse/internal/engine"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Run a query through the root agent to completion",
		Long: `Run starts a root agent on the given query and lets it explore, recurse via
llm_query, and eventually call FINAL(value). The query may be given as
trailing arguments or piped in on stdin (stdin is prepended when present).`,
		Example: `
# Run a query given on the command line
rlm run "Summarize the attached transcript"

# Pipe a long document in on stdin
cat transcript.txt | rlm run "Summarize this"
`,
		RunE: runRun,
	}
	cmd.Flags().Bool("verbose", false, "print the full terminal value as JSON instead of its string form")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	logDir, _ := cmd.Flags().GetString("log-dir")
	verbose, _ := cmd.Flags().GetBool("verbose")

	query, err := resolveQuery(args)
	if err != nil {
		return err
	}
	if query == "" {
		return fmt.Errorf("no query provided (pass it as an argument or pipe it on stdin)")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	result, err := engine.Run(ctx, query, engine.Options{
		Config:  cfg,
		LogDir:  logDir,
		Verbose: verbose,
	})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Fprintf(os.Stderr, "log: %s\n", result.LogFile)
	fmt.Fprintf(os.Stderr, "usage: prompt=%d completion=%d cost=%.4f\n",
		result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.CostOrZero())

	printResult(result.Results, verbose)
	return nil
}

// resolveQuery joins args with spaces and, when stdin is not a terminal,
// prepends its contents.
func resolveQuery(args []string) (string, error) {
	query := strings.Join(args, " ")

	stat, err := os.Stdin.Stat()
	if err != nil {
		return query, nil
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return query, nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return query, nil
	}
	if query == "" {
		return string(data), nil
	}
	return string(data) + "\n" + query, nil
}

func printResult(value any, verbose bool) {
	if verbose {
		if data, err := json.Marshal(value); err == nil {
			fmt.Println(string(data))
			return
		}
	}
	if s, ok := value.(string); ok {
		fmt.Println(s)
		return
	}
	fmt.Printf("%v\n", value)
}
