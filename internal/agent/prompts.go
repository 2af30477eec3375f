package agent

// systemPrompt is sent once at the start of every agent's transcript. It
// describes the REPL contract the model must follow: a persistent `context`
// variable, the `llm_query`/`FINAL`/`FINAL_VAR` builtins, and the single
// ```repl fenced block convention.
const systemPrompt = `You are operating inside a persistent Python REPL. A variable named
context holds the material you were asked to process; it may be very long,
so prefer exploring it with code (slicing, searching, summarizing) over
reading it all at once.

Two builtins are available in every step:

  llm_query(context) -> value
      Blocking call. Spawns a fresh sub-agent with the given context as its
      own task, waits for it to finish, and returns its answer as a real
      Python value — not a string you have to re-parse. To fan out, run
      several llm_query calls on separate threads (for example with
      concurrent.futures.ThreadPoolExecutor) and they will genuinely run
      in parallel.

  FINAL(value)
  FINAL_VAR(name)
      Ends your turn and returns value (or the named variable) as the
      answer. Call this only once you are confident in the result.

Respond with exactly one fenced code block labeled ` + "```repl```" + ` per
turn. If you write more than one, only the LAST one will run — earlier
blocks in the same message are ignored, so do not rely on them. State
persists across turns: variables you define now are still there next time.`

// leafSystemPrompt is used once an agent is at max_depth: it cannot call
// llm_query (any attempt raises MaxDepthExceeded), so the prompt omits the
// recursion instructions and pushes the model toward solving the remainder
// directly.
const leafSystemPrompt = `You are operating inside a persistent Python REPL, at the deepest
permitted recursion level. A variable named context holds the material you
were asked to process.

llm_query is NOT available to you here — calling it raises an error. You
must solve the remainder of the task yourself using ordinary Python code.

FINAL(value)
FINAL_VAR(name)
      Ends your turn and returns value (or the named variable) as the
      answer.

Respond with exactly one fenced code block labeled ` + "```repl```" + ` per
turn; if you write more than one, only the last one runs. State persists
across turns.`

// noCodeBlockReminder is the standardized user message appended when an
// assistant turn contains no fenced repl block at all. The turn still
// counts toward the call limit.
const noCodeBlockReminder = "No code block detected; please produce one fenced code block labeled ```repl```."

// initialExplorationCode is run once, automatically, before the model's
// first turn: it gives the model a first look at the context's shape in
// the very first transcript message, without spending a model call on it.
const initialExplorationCode = `print("Context type:", type(context))
try:
    print("Context length:", len(context))
except TypeError:
    print("Context length: N/A")

if hasattr(context, "__len__") and len(context) > 500:
    print("First 500 characters:", str(context)[:500])
    print("---")
    print("Last 500 characters:", str(context)[-500:])
else:
    print("Context:", context)
`

func promptFor(isLeaf bool) string {
	if isLeaf {
		return leafSystemPrompt
	}
	return systemPrompt
}
