package intent

import "strings"

// Intent is the routing category for a user message.
type Intent string

const (
	// Capture routes to action extraction.
	Capture Intent = "capture"
	// Coaching routes to supportive conversation.
	Coaching Intent = "coaching"
	// Command routes to system command handling.
	Command Intent = "command"
	// Clarify marks input too ambiguous to act on; routed like capture so
	// the extraction path can surface its ambiguities.
	Clarify Intent = "clarify"
)

// ParseIntent maps a classifier label to an Intent. Matching is
// case-insensitive on the intent name.
func ParseIntent(s string) (Intent, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CAPTURE":
		return Capture, true
	case "COACHING":
		return Coaching, true
	case "COMMAND":
		return Command, true
	case "CLARIFY":
		return Clarify, true
	}
	return "", false
}

// Result is a classified intent with confidence and the rule or model
// reasoning that produced it.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}
