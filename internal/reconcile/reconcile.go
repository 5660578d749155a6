// Package reconcile decides whether a task may be marked complete when
// its plan still has unchecked items. Exactly one mode is evaluated per
// completion call; there is no retry-with-different-mode. Only DONE
// completions are reconciled — an errored task may be reported with any
// plan state.
package reconcile

import (
	"strings"

	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/plan"
)

// Outcome is the reconciliation verdict for one completion attempt.
type Outcome struct {
	Mode          models.ReconcileMode
	Plan          string // plan text after reconciliation
	PlanRewritten bool   // auto_complete checked items off
	CheckedOff    []string
	Variances     []models.Variance
	Forced        bool
}

// Evaluate applies one reconciliation mode to the plan text.
//
//   - strict: fails with IncompletePlanError listing every unchecked title.
//   - auto_complete: rewrites all unchecked items to checked.
//   - reconcile: requires an explanation per unchecked title and reports
//     them as variances; the plan is left as-is.
//   - force: succeeds regardless; the caller documents the override.
func Evaluate(agent, taskID string, mode models.ReconcileMode, planText string, explanations map[string]string) (*Outcome, error) {
	if mode == "" {
		mode = models.ReconcileStrict
	}
	if !mode.Valid() {
		return nil, &models.ValidationError{Field: "reconciliation_mode", Value: string(mode), Reason: "unknown mode"}
	}

	out := &Outcome{Mode: mode, Plan: planText}

	unchecked := plan.UncheckedTitles(planText)
	if len(unchecked) == 0 {
		return out, nil
	}

	switch mode {
	case models.ReconcileStrict:
		return nil, &models.IncompletePlanError{Agent: agent, TaskID: taskID, Unchecked: unchecked}

	case models.ReconcileAutoComplete:
		out.Plan, out.CheckedOff = plan.CheckAll(planText)
		out.PlanRewritten = true

	case models.ReconcileVariance:
		var missing []string
		for _, title := range unchecked {
			expl, ok := lookupExplanation(explanations, title)
			if !ok {
				missing = append(missing, title)
				continue
			}
			out.Variances = append(out.Variances, models.Variance{Title: title, Explanation: expl})
		}
		if len(missing) > 0 {
			return nil, &models.IncompletePlanError{Agent: agent, TaskID: taskID, Unchecked: missing}
		}

	case models.ReconcileForce:
		out.Forced = true
	}

	return out, nil
}

// lookupExplanation matches explanation keys against a step title,
// tolerating case and surrounding whitespace differences.
func lookupExplanation(explanations map[string]string, title string) (string, bool) {
	if expl, ok := explanations[title]; ok && strings.TrimSpace(expl) != "" {
		return expl, true
	}
	want := strings.ToLower(strings.TrimSpace(title))
	for k, v := range explanations {
		if strings.ToLower(strings.TrimSpace(k)) == want && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
