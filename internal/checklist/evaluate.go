package checklist

import (
	"fmt"
	"sort"
)

// Item is a checklist item ready for evaluation.
type Item struct {
	ID        int64
	Step      int
	Title     string
	Decision  Decision
	OnFailure Action
}

// Answer is what the executing user submitted for one item. Raw is used when the typed
// fields are empty.
type Answer struct {
	Bool     *bool    `json:"bool,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Raw      string   `json:"raw,omitempty"`
	PhotoRef string   `json:"photo_ref,omitempty"`
}

// Result is the evaluated outcome of one item. Answer holds the normalized answer.
type Result struct {
	ItemID    int64
	Step      int
	Kind      Kind
	Passed    bool
	Answer    Answer
	OnFailure Action
}

// Escalates reports whether the failure must open an escalation.
func (r Result) Escalates() bool {
	return !r.Passed && (r.OnFailure == Escalate || r.OnFailure == Stop)
}

// Outcome is the result of evaluating a list of items.
type Outcome struct {
	Results []Result
	// Halted is set when a stop item failed; items after it were not evaluated.
	Halted       bool
	HaltedItemID int64
}

// Failures returns the failed results in step order.
func (o Outcome) Failures() []Result {
	var out []Result
	for _, r := range o.Results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate checks items in step order against answers keyed by item ID. Evaluation stops
// after the first failing item whose action is Stop. A missing or unreadable answer fails
// the whole evaluation with a validation error.
func Evaluate(items []Item, answers map[int64]Answer) (Outcome, error) {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Step < ordered[j].Step })

	var out Outcome
	for _, item := range ordered {
		if item.Decision == nil {
			return Outcome{}, fmt.Errorf("checklist item %d has no decision", item.ID)
		}
		a, answered := answers[item.ID]
		passed, normalized, err := item.Decision.check(a, answered)
		if err != nil {
			return Outcome{}, fmt.Errorf("checklist item %d (step %d): %w", item.ID, item.Step, err)
		}

		out.Results = append(out.Results, Result{
			ItemID:    item.ID,
			Step:      item.Step,
			Kind:      item.Decision.Kind(),
			Passed:    passed,
			Answer:    normalized,
			OnFailure: item.OnFailure,
		})

		if !passed && item.OnFailure == Stop {
			out.Halted = true
			out.HaltedItemID = item.ID
			break
		}
	}
	return out, nil
}
