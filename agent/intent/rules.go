// Package intent turns free text into the closed intent set and the parameters
// the Router needs to dispatch it. Detection is rule based; an optional model
// classifier only labels queries the rules leave empty.
package intent

import (
	"regexp"
	"sort"
	"strings"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

type rule struct {
	intent   contractx.Intent
	patterns []*regexp.Regexp
}

func mustCompile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// Escalation is handled by the escalation policy, not by this table.
var rules = []rule{
	{
		intent: contractx.IntentLookup,
		patterns: mustCompile(
			`\bcustomer\s+(information|info|details|record|profile)\b`,
			`\b(look\s?up|find|get|fetch|show|display)\b[^.?!]*\bcustomer\b`,
			`\bmy\s+(account|profile)\s+(details|info|information)\b`,
			`\bwho\s+is\s+customer\b`,
		),
	},
	{
		intent: contractx.IntentUpdate,
		patterns: mustCompile(
			`\b(update|change|set|modify|correct)\b[^.?!]*\b(email|phone|name|status)\b`,
			`\bmy\s+new\s+(email|phone)\b`,
		),
	},
	{
		intent: contractx.IntentList,
		patterns: mustCompile(
			`\b(list|show|find|get|which|all)\b[^.?!]*\bcustomers\b`,
			`\bcustomers\s+(who|with|that)\b`,
			`\b(active|inactive|suspended|premium)\s+customers\b`,
		),
	},
	{
		intent: contractx.IntentHistory,
		patterns: mustCompile(
			`\bhistory\b`,
			`\b(my|past|previous|prior)\s+tickets\b`,
			`\bticket\s+status\b`,
		),
	},
	{
		intent: contractx.IntentUpgrade,
		patterns: mustCompile(
			`\bupgrad(e|ed|es|ing)\b`,
		),
	},
	{
		intent: contractx.IntentMixed,
		patterns: mustCompile(
			`\bhelp\s+with\s+(my|the|this)\s+account\b`,
			`\bcancel\w*\b`,
			`\bneed\s+(some\s+)?help\b`,
		),
	},
}

type hit struct {
	intent contractx.Intent
	index  int
}

// Detect returns the intents present in query, each once, ordered by where it
// first appears. Escalation markers suppress the general support intent since
// the escalation path already carries the account context.
func Detect(query string) []contractx.Intent {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	hits := make([]hit, 0, len(rules)+1)
	for _, r := range rules {
		if idx := firstIndex(query, r.patterns); idx >= 0 {
			hits = append(hits, hit{intent: r.intent, index: idx})
		}
	}
	escalate := false
	if m, ok := DefaultEscalationPolicy.Match(query); ok {
		hits = append(hits, hit{intent: contractx.IntentEscalate, index: m.Index})
		escalate = true
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	out := make([]contractx.Intent, 0, len(hits))
	for _, h := range hits {
		if escalate && h.intent == contractx.IntentMixed {
			continue
		}
		out = appendUnique(out, h.intent)
	}
	return out
}

func firstIndex(s string, patterns []*regexp.Regexp) int {
	best := -1
	for _, re := range patterns {
		if loc := re.FindStringIndex(s); loc != nil && (best < 0 || loc[0] < best) {
			best = loc[0]
		}
	}
	return best
}

func appendUnique(list []contractx.Intent, in contractx.Intent) []contractx.Intent {
	for _, existing := range list {
		if existing == in {
			return list
		}
	}
	return append(list, in)
}
