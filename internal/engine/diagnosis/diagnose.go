// Package diagnosis classifies wrong answers into failure modes and routes
// each mode to a remediation strategy. Classification is a decision list
// evaluated top to bottom, first match wins; it is a pure function of its
// inputs and never errors — RetrievalLapse is the guaranteed fallback.
package diagnosis

import (
	"strings"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// ResponseEvent carries the telemetry of one incorrect answer.
type ResponseEvent struct {
	AtomID         uuid.UUID
	AtomType       types.AtomType
	Difficulty     float64 // 0..1
	StabilityDays  float64
	Lapses         int
	ResponseTimeMs int64
	SelectedOption string
	CorrectOption  string
	// Similarity between the chosen distractor and the correct answer, when
	// the caller has a better signal than lexical overlap. Nil falls back to
	// token overlap of the option texts.
	DistractorSimilarity *float64
}

// PrereqSummary is the graph/mastery context for the answered concept.
type PrereqSummary struct {
	PrereqCount      int
	AvgPrereqMastery float64
}

// SessionContext is the rolling state of the learner's current session.
type SessionContext struct {
	Position      int    // 1-based position of this response in the session
	RecentCorrect []bool // most recent last; the fatigue window reads the tail
}

// Diagnosis is the ephemeral classification result for one wrong answer.
type Diagnosis struct {
	FailMode       FailMode    `json:"fail_mode"`
	Remediation    Remediation `json:"remediation"`
	ConfidenceHint float64     `json:"confidence_hint"`
	SuggestBreak   bool        `json:"suggest_break,omitempty"`
	MinThinkTimeMs int64       `json:"min_think_time_ms,omitempty"`
}

// Diagnoser applies the decision list with its configured thresholds.
type Diagnoser struct {
	params config.Diagnosis
}

func NewDiagnoser(params config.Diagnosis) *Diagnoser {
	return &Diagnoser{params: params}
}

// ExpectedTimeMs estimates plausible think time for an atom: a base plus a
// span scaled by difficulty.
func (d *Diagnoser) ExpectedTimeMs(difficulty float64) int64 {
	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > 1 {
		difficulty = 1
	}
	return d.params.ExpectedTimeBaseMs + int64(float64(d.params.ExpectedTimeSpanMs)*difficulty)
}

// Diagnose classifies one incorrect response. Identical inputs always yield
// the identical diagnosis.
func (d *Diagnoser) Diagnose(event ResponseEvent, prereqs PrereqSummary, session SessionContext) Diagnosis {
	switch {
	case d.tooFast(event):
		return d.finish(TooFast, 0.8)
	case d.fatigued(session):
		diag := d.finish(CognitiveFatigue, 0.7)
		diag.SuggestBreak = true
		return diag
	case event.Lapses == 0 && event.StabilityDays < d.params.EncodingStability:
		return d.finish(EncodingGap, 0.75)
	case d.confusedDistractor(event):
		return d.finish(PatternConfusion, 0.7)
	case prereqs.PrereqCount > d.params.IntegrationPrereqs && prereqs.AvgPrereqMastery < d.params.IntegrationMastery:
		return d.finish(IntegrationGap, 0.65)
	default:
		return d.finish(RetrievalLapse, 0.5)
	}
}

func (d *Diagnoser) finish(mode FailMode, confidence float64) Diagnosis {
	diag := Diagnosis{
		FailMode:       mode,
		Remediation:    RouteRemediation(mode),
		ConfidenceHint: confidence,
	}
	if diag.Remediation == SlowDown {
		diag.MinThinkTimeMs = d.params.MinimumThinkTimeMs
	}
	return diag
}

func (d *Diagnoser) tooFast(event ResponseEvent) bool {
	if event.ResponseTimeMs <= 0 {
		return false
	}
	expected := d.ExpectedTimeMs(event.Difficulty)
	return float64(event.ResponseTimeMs) < d.params.TooFastRatio*float64(expected)
}

func (d *Diagnoser) fatigued(session SessionContext) bool {
	if session.Position <= d.params.FatiguePosition {
		return false
	}
	window := d.params.FatigueWindow
	recent := session.RecentCorrect
	if len(recent) < window {
		return false
	}
	recent = recent[len(recent)-window:]
	values := make([]float64, len(recent))
	for i, ok := range recent {
		if ok {
			values[i] = 1
		}
	}
	accuracy, err := stats.Mean(values)
	if err != nil {
		return false
	}
	return accuracy < d.params.FatigueAccuracy
}

func (d *Diagnoser) confusedDistractor(event ResponseEvent) bool {
	if event.AtomType != types.AtomMultipleChoice {
		return false
	}
	similarity := 0.0
	if event.DistractorSimilarity != nil {
		similarity = *event.DistractorSimilarity
	} else {
		similarity = tokenOverlap(event.SelectedOption, event.CorrectOption)
	}
	return similarity >= d.params.DistractorSimilar
}

// tokenOverlap is Jaccard similarity over lowercased whitespace tokens. A
// deliberately shallow signal: real semantic similarity is the content
// source's job, this is only the fallback when none was supplied.
func tokenOverlap(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	intersection := 0
	for tok := range left {
		if right[tok] {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if tok != "" {
			out[tok] = true
		}
	}
	return out
}
