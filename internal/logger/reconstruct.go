package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// RunNode is one agent's bucketed events plus its children, as reconstructed
// from a flat JSONL stream.
type RunNode struct {
	RunID       string
	ParentRunID string
	Depth       int
	Events      []Event
	Children    []*RunNode
}

// RunTree is the full forest reconstructed from a log file: normally a
// single root, but kept as a slice so a log concatenated from multiple runs
// still parses.
type RunTree struct {
	Roots []*RunNode
}

// Reconstruct buckets a flat slice of events by run_id and links children to
// parents by parent_run_id. It tolerates parent events that appear after
// their children in the stream (a back-filled parent id):
// linking happens in a second pass after every run_id has been bucketed, so
// event order within the input never affects the resulting tree. Calling
// Reconstruct again on the same events (or on a re-serialization of the
// same tree) yields an isomorphic tree — the idempotent re-parse law.
func Reconstruct(events []Event) (*RunTree, error) {
	nodes := make(map[string]*RunNode)
	order := make([]string, 0)

	for _, ev := range events {
		if ev.RunID == "" {
			return nil, fmt.Errorf("logger: event missing run_id: %+v", ev)
		}
		n, ok := nodes[ev.RunID]
		if !ok {
			n = &RunNode{RunID: ev.RunID, ParentRunID: ev.ParentRunID, Depth: ev.Depth}
			nodes[ev.RunID] = n
			order = append(order, ev.RunID)
		}
		if n.ParentRunID == "" && ev.ParentRunID != "" {
			n.ParentRunID = ev.ParentRunID
		}
		n.Events = append(n.Events, ev)
	}

	tree := &RunTree{}
	for _, id := range order {
		n := nodes[id]
		if n.ParentRunID == "" {
			tree.Roots = append(tree.Roots, n)
			continue
		}
		parent, ok := nodes[n.ParentRunID]
		if !ok {
			// A parent id that never appears in this stream (a
			// truncated log, or a parent logged elsewhere) still
			// yields a usable tree: treat the node as a root.
			tree.Roots = append(tree.Roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	sort.SliceStable(tree.Roots, func(i, j int) bool { return tree.Roots[i].RunID < tree.Roots[j].RunID })
	for _, n := range nodes {
		sort.SliceStable(n.Children, func(i, j int) bool { return n.Children[i].RunID < n.Children[j].RunID })
	}
	return tree, nil
}

// ReadEvents parses a JSONL stream into a flat slice of Event, skipping
// blank lines (a rotation boundary can leave a trailing newline).
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("logger: parse line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
