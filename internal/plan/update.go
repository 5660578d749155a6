package plan

import (
	"math"
	"strings"

	"github.com/dotcommander/taskcomm/internal/models"
)

// Update describes a mutation to one checkbox line. Empty time fields keep
// whatever the line already carries, so re-applying an identical update is
// a no-op.
type Update struct {
	Status             models.StepStatus
	TimeSpent          string
	EstimatedRemaining string
	BlockerNote        string
}

// ApplyUpdate rewrites the stepIndex-th (1-based) checkbox line, replacing
// only its checked-state token and trailing annotation. The title segment
// is preserved verbatim. Returns the input unchanged with found=false when
// stepIndex exceeds the number of checkbox lines.
func ApplyUpdate(markdown string, stepIndex int, u Update) (out string, found bool) {
	if stepIndex < 1 {
		return markdown, false
	}

	lines := strings.Split(markdown, "\n")
	n := 0
	for i, raw := range lines {
		m := checkboxRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		n++
		if n != stepIndex {
			continue
		}
		checked := m[2] == "x" || m[2] == "X"
		rawTitle, step := parseRemainder(m[3], checked)
		lines[i] = renderLine(m[1], rawTitle, merge(step, u))
		return strings.Join(lines, "\n"), true
	}
	return markdown, false
}

// ApplyTitleUpdate mutates the first step whose title matches the given
// title, case-insensitively, by exact or substring match in either
// direction. Returns the matched step title so callers can report what
// was actually changed.
func ApplyTitleUpdate(markdown, title string, status models.StepStatus) (out, matched string, found bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return markdown, "", false
	}
	for _, s := range Parse(markdown) {
		have := strings.ToLower(s.Title)
		if have == want || strings.Contains(have, want) || strings.Contains(want, have) {
			out, _ = ApplyUpdate(markdown, s.Index, Update{Status: status})
			return out, s.Title, true
		}
	}
	return markdown, "", false
}

func merge(step models.PlanStep, u Update) models.PlanStep {
	step.Status = u.Status
	if u.TimeSpent != "" {
		step.TimeSpent = u.TimeSpent
	}
	if u.EstimatedRemaining != "" {
		step.EstimatedRemaining = u.EstimatedRemaining
	}
	if u.Status == models.StepStatusBlocked {
		if u.BlockerNote != "" {
			step.BlockerNote = u.BlockerNote
		}
	} else {
		step.BlockerNote = ""
	}
	return step
}

// AllChecked reports whether every checkbox line is checked.
// A plan with no checkbox lines counts as fully checked.
func AllChecked(markdown string) bool {
	for _, s := range Parse(markdown) {
		if s.Status != models.StepStatusComplete {
			return false
		}
	}
	return true
}

// UncheckedTitles returns the titles of every unchecked step, in order.
func UncheckedTitles(markdown string) []string {
	var titles []string
	for _, s := range Parse(markdown) {
		if s.Status != models.StepStatusComplete {
			titles = append(titles, s.Title)
		}
	}
	return titles
}

// CheckAll rewrites every unchecked item to checked and returns the titles
// that were flipped. Used by auto_complete reconciliation.
func CheckAll(markdown string) (out string, checked []string) {
	out = markdown
	for _, s := range Parse(markdown) {
		if s.Status == models.StepStatusComplete {
			continue
		}
		out, _ = ApplyUpdate(out, s.Index, Update{Status: models.StepStatusComplete})
		checked = append(checked, s.Title)
	}
	return out, checked
}

// Markers recomputes progress counters from the current plan text.
func Markers(markdown string) models.ProgressMarkers {
	var mk models.ProgressMarkers
	for _, s := range Parse(markdown) {
		mk.TotalSteps++
		switch s.Status {
		case models.StepStatusComplete:
			mk.CompletedSteps++
		case models.StepStatusInProgress:
			mk.InProgressSteps++
		case models.StepStatusBlocked:
			mk.BlockedSteps++
		}
	}
	if mk.TotalSteps > 0 {
		mk.Progress = int(math.Round(float64(mk.CompletedSteps) / float64(mk.TotalSteps) * 100))
	}
	return mk
}
