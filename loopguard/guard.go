// Package loopguard detects unproductive repetition in recent conversation
// turns and decides when a generation should be cut short.
//
// The classifier is a keyword heuristic over a bounded recency window. It is
// deliberately cheap: the thresholds, not the matching, are the contract.
package loopguard

import (
	"strings"

	"github.com/jivagrisma/ISA-AGENT/message"
)

// DefaultWindow is the number of trailing turns inspected.
const DefaultWindow = 5

// minHistory is the shortest history the guard will act on.
const minHistory = 3

var searchMarkers = []string{"web_search", "searching"}

var planningMarkers = []string{
	"let's plan",
	"let's break",
	"planning",
	"we need to",
	"plan the creation",
}

var contentMarkers = []string{"landing page", "html", "css"}

// Snapshot summarises the guard's view of the recent window.
type Snapshot struct {
	SearchCount   int
	PlanningCount int
	HistoryLen    int
	Window        int
}

// Inspect classifies the trailing window of the history. It is a pure
// function and safe for concurrent use.
func Inspect(msgs []*message.Message, window int) Snapshot {
	if window <= 0 {
		window = DefaultWindow
	}
	snap := Snapshot{HistoryLen: len(msgs), Window: window}
	for _, msg := range message.Window(msgs, window) {
		if msg == nil {
			continue
		}
		content := strings.ToLower(msg.Content)
		if containsAny(content, searchMarkers) {
			snap.SearchCount++
		}
		if containsAny(content, planningMarkers) {
			snap.PlanningCount++
		}
	}
	return snap
}

// Triggered reports whether the repetition thresholds are crossed.
func (s Snapshot) Triggered() bool {
	return s.SearchCount >= 2 || s.PlanningCount >= 3
}

// ShouldForceTerminate reports whether the pipeline should substitute a
// synthesized final answer instead of invoking the model again. Histories
// shorter than three turns never terminate.
func (s Snapshot) ShouldForceTerminate() bool {
	return s.HistoryLen >= minHistory && s.Triggered()
}

// SuppressSearch reports whether additional web_search tool calls found in
// the same pass must be dropped: one recorded search in the window is enough.
func (s Snapshot) SuppressSearch() bool {
	return s.SearchCount >= 1
}

// ShouldForceTerminate is the package-level form of the snapshot check.
func ShouldForceTerminate(msgs []*message.Message, window int) bool {
	return Inspect(msgs, window).ShouldForceTerminate()
}

// IsContentTask reports whether the text describes a content-generation task.
// Such tasks are exempt from forced termination so the agent can keep using
// its tools.
func IsContentTask(text string) bool {
	return containsAny(strings.ToLower(text), contentMarkers)
}

// LatestContent returns the text of the most recent turn.
func LatestContent(msgs []*message.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil {
			return msgs[i].Content
		}
	}
	return ""
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
