package intent

import (
	"regexp"
	"strings"
)

// Marker is the escalation marker found in a query.
type Marker struct {
	Name  string
	Index int
}

type marker struct {
	name string
	re   *regexp.Regexp
}

// EscalationPolicy flags billing disputes, urgency and repeated complaints.
// It is a fixed rule set; a query either carries a marker or it does not.
type EscalationPolicy struct {
	markers []marker
}

var DefaultEscalationPolicy = NewEscalationPolicy(map[string]string{
	"duplicate_charge":   `\b(charged|billed)\s+(twice|two\s+times|double|again)\b|\b(double|duplicate)[\s-]+(charge|charged|billing)\b`,
	"refund":             `\brefund\w*\b`,
	"billing_dispute":    `\b(billing\s+dispute|dispute\s+(a|the|this)?\s*charge|chargeback)\b`,
	"urgent":             `\b(urgent\w*|immediately|asap|right\s+now|emergency)\b`,
	"repeated_complaint": `\b(third|3rd|fourth|several|multiple)\s+time\b|\bkeeps?\s+happening\b|\bstill\s+(not|broken|waiting)\b|\bcomplained\s+(before|already|again)\b`,
})

// NewEscalationPolicy compiles name to pattern markers. Patterns match case-insensitively.
func NewEscalationPolicy(markers map[string]string) *EscalationPolicy {
	p := &EscalationPolicy{markers: make([]marker, 0, len(markers))}
	for name, expr := range markers {
		p.markers = append(p.markers, marker{name: name, re: regexp.MustCompile(`(?i)` + expr)})
	}
	return p
}

// Match returns the earliest marker in query. Ties go to the lexically smaller name.
func (p *EscalationPolicy) Match(query string) (Marker, bool) {
	var (
		best  Marker
		found bool
	)
	for _, m := range p.markers {
		loc := m.re.FindStringIndex(query)
		if loc == nil {
			continue
		}
		if !found || loc[0] < best.Index || (loc[0] == best.Index && m.name < best.Name) {
			best = Marker{Name: m.name, Index: loc[0]}
			found = true
		}
	}
	return best, found
}

// Triggered reports whether query carries any escalation marker.
func (p *EscalationPolicy) Triggered(query string) bool {
	_, ok := p.Match(strings.TrimSpace(query))
	return ok
}
