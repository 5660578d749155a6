// Package plan round-trips a markdown progress plan between text and a
// structured step list. Only checkbox lines ("- [ ]" / "- [x]") are
// significant; everything else passes through untouched. Lines that look
// like checkboxes but have malformed brackets are skipped, not fatal.
package plan

import (
	"regexp"
	"strings"

	"github.com/dotcommander/taskcomm/internal/models"
)

// Status glyphs appended after a step title. The checkbox token tracks
// completion only; intermediate states ride in the annotation so external
// markdown tooling still renders the list correctly.
const (
	GlyphInProgress = "🔄"
	GlyphBlocked    = "🚫"
)

var (
	checkboxRe = regexp.MustCompile(`^(\s*)- \[([ xX])\] ?(.*)$`)
	boldRe     = regexp.MustCompile(`^\*\*(.+?)\*\*`)
	timeRe     = regexp.MustCompile(`\((?:spent: ([^,)]+))?(?:, )?(?:remaining: ([^)]+))?\)`)
)

// line is the decomposition of one checkbox line. rawTitle preserves the
// exact title segment (including any bold markers) so updates can rewrite
// annotations without touching the title text.
type line struct {
	indent   string
	checked  bool
	rawTitle string
	step     models.PlanStep
}

// Parse extracts the ordered step list from a plan. Index assignment is
// 1-based and follows line order.
func Parse(markdown string) []models.PlanStep {
	var steps []models.PlanStep
	for _, l := range parseLines(markdown) {
		steps = append(steps, l.step)
	}
	return steps
}

// Serialize renders steps back to checkbox markdown. Parse(Serialize(s))
// preserves title, status, time fields, and blocker notes.
func Serialize(steps []models.PlanStep) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(renderLine("", "**"+s.Title+"**", s))
		b.WriteString("\n")
	}
	return b.String()
}

// parseLines walks the plan and decomposes every well-formed checkbox line.
func parseLines(markdown string) []line {
	var out []line
	for _, raw := range strings.Split(markdown, "\n") {
		m := checkboxRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		l := line{indent: m[1], checked: m[2] == "x" || m[2] == "X"}
		l.rawTitle, l.step = parseRemainder(m[3], l.checked)
		l.step.Index = len(out) + 1
		out = append(out, l)
	}
	return out
}

// parseRemainder splits the text after the checkbox token into the verbatim
// title segment and the structured annotation fields.
func parseRemainder(rest string, checked bool) (string, models.PlanStep) {
	var step models.PlanStep

	rawTitle := rest
	annotation := ""
	if m := boldRe.FindString(rest); m != "" {
		rawTitle = m
		annotation = rest[len(m):]
	} else if idx := firstGlyphIndex(rest); idx >= 0 {
		rawTitle = strings.TrimRight(rest[:idx], " ")
		annotation = rest[idx:]
	} else if idx := firstTimeIndex(rest); idx >= 0 {
		rawTitle = strings.TrimRight(rest[:idx], " ")
		annotation = rest[idx:]
	}

	step.Title = strings.TrimSpace(strings.Trim(strings.TrimSpace(rawTitle), "*"))

	glyph := ""
	if idx := firstGlyphIndex(annotation); idx >= 0 {
		if strings.HasPrefix(annotation[idx:], GlyphInProgress) {
			glyph = GlyphInProgress
			annotation = annotation[:idx] + annotation[idx+len(GlyphInProgress):]
		} else {
			glyph = GlyphBlocked
			annotation = annotation[:idx] + annotation[idx+len(GlyphBlocked):]
		}
	}
	for _, m := range timeRe.FindAllStringSubmatch(annotation, -1) {
		if m[1] == "" && m[2] == "" {
			continue // bare parens in free text, not a time annotation
		}
		step.TimeSpent = strings.TrimSpace(m[1])
		step.EstimatedRemaining = strings.TrimSpace(m[2])
		annotation = strings.Replace(annotation, m[0], "", 1)
		break
	}

	note := strings.TrimSpace(annotation)

	switch {
	case checked:
		step.Status = models.StepStatusComplete
	case glyph == GlyphInProgress:
		step.Status = models.StepStatusInProgress
	case glyph == GlyphBlocked:
		step.Status = models.StepStatusBlocked
		step.BlockerNote = note
	default:
		step.Status = models.StepStatusPending
	}
	return rawTitle, step
}

// firstTimeIndex returns the start offset of the first real time
// annotation in s, or -1. Bare "()" in free text does not count.
func firstTimeIndex(s string) int {
	for _, m := range timeRe.FindAllStringSubmatchIndex(s, -1) {
		if m[2] >= 0 || m[4] >= 0 {
			return m[0]
		}
	}
	return -1
}

func firstGlyphIndex(s string) int {
	i := strings.Index(s, GlyphInProgress)
	j := strings.Index(s, GlyphBlocked)
	switch {
	case i < 0:
		return j
	case j < 0:
		return i
	case i < j:
		return i
	default:
		return j
	}
}

// renderLine rebuilds one checkbox line from a raw title segment and the
// step's annotation fields.
func renderLine(indent, rawTitle string, s models.PlanStep) string {
	var b strings.Builder
	b.WriteString(indent)
	if s.Status == models.StepStatusComplete {
		b.WriteString("- [x] ")
	} else {
		b.WriteString("- [ ] ")
	}
	b.WriteString(rawTitle)

	switch s.Status {
	case models.StepStatusInProgress:
		b.WriteString(" " + GlyphInProgress)
	case models.StepStatusBlocked:
		b.WriteString(" " + GlyphBlocked)
	}

	if t := renderTime(s.TimeSpent, s.EstimatedRemaining); t != "" {
		b.WriteString(" " + t)
	}
	if s.Status == models.StepStatusBlocked && s.BlockerNote != "" {
		b.WriteString(" " + s.BlockerNote)
	}
	return b.String()
}

func renderTime(spent, remaining string) string {
	switch {
	case spent != "" && remaining != "":
		return "(spent: " + spent + ", remaining: " + remaining + ")"
	case spent != "":
		return "(spent: " + spent + ")"
	case remaining != "":
		return "(remaining: " + remaining + ")"
	}
	return ""
}
