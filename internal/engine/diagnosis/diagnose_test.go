package diagnosis

import (
	"testing"

	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/types"
)

func newTestDiagnoser() *Diagnoser {
	return NewDiagnoser(config.Default().Diagnosis)
}

// baseEvent is a wrong answer that matches none of the specific rules, so the
// decision list falls through to RetrievalLapse.
func baseEvent() ResponseEvent {
	return ResponseEvent{
		AtomType:       types.AtomRecallCard,
		Difficulty:     0.5,
		StabilityDays:  10,
		Lapses:         2,
		ResponseTimeMs: 9000,
	}
}

func TestExpectedTimeScalesWithDifficulty(t *testing.T) {
	d := newTestDiagnoser()
	if got := d.ExpectedTimeMs(0); got != 4000 {
		t.Errorf("difficulty 0: got %d, want 4000", got)
	}
	if got := d.ExpectedTimeMs(1); got != 16000 {
		t.Errorf("difficulty 1: got %d, want 16000", got)
	}
	if got := d.ExpectedTimeMs(0.5); got != 10000 {
		t.Errorf("difficulty 0.5: got %d, want 10000", got)
	}
	// Out-of-range difficulty clamps.
	if got := d.ExpectedTimeMs(-3); got != 4000 {
		t.Errorf("difficulty -3: got %d, want 4000", got)
	}
	if got := d.ExpectedTimeMs(7); got != 16000 {
		t.Errorf("difficulty 7: got %d, want 16000", got)
	}
}

func TestDiagnoseFallbackIsRetrievalLapse(t *testing.T) {
	d := newTestDiagnoser()
	diag := d.Diagnose(baseEvent(), PrereqSummary{}, SessionContext{})
	if diag.FailMode != RetrievalLapse {
		t.Errorf("fail mode = %s, want retrieval_lapse", diag.FailMode)
	}
	if diag.Remediation != SpacedRepeat {
		t.Errorf("remediation = %s, want spaced_repeat", diag.Remediation)
	}
	if diag.SuggestBreak || diag.MinThinkTimeMs != 0 {
		t.Errorf("fallback diagnosis carries extras: %+v", diag)
	}
}

func TestDiagnoseTooFast(t *testing.T) {
	d := newTestDiagnoser()
	event := baseEvent()
	// Expected for difficulty 0.5 is 10000ms; half of that is the cutoff.
	event.ResponseTimeMs = 4999
	diag := d.Diagnose(event, PrereqSummary{}, SessionContext{})
	if diag.FailMode != TooFast {
		t.Fatalf("fail mode = %s, want too_fast", diag.FailMode)
	}
	if diag.Remediation != SlowDown {
		t.Errorf("remediation = %s, want slow_down", diag.Remediation)
	}
	if diag.MinThinkTimeMs != 3000 {
		t.Errorf("min think time = %d, want 3000", diag.MinThinkTimeMs)
	}

	// Exactly at the cutoff is not too fast.
	event.ResponseTimeMs = 5000
	if diag := d.Diagnose(event, PrereqSummary{}, SessionContext{}); diag.FailMode == TooFast {
		t.Error("cutoff boundary classified as too_fast")
	}

	// Missing timing data never triggers the rule.
	event.ResponseTimeMs = 0
	if diag := d.Diagnose(event, PrereqSummary{}, SessionContext{}); diag.FailMode == TooFast {
		t.Error("zero response time classified as too_fast")
	}
}

func TestDiagnoseCognitiveFatigue(t *testing.T) {
	d := newTestDiagnoser()
	session := SessionContext{
		Position:      31,
		RecentCorrect: []bool{false, false, true, false, false}, // 0.2 accuracy
	}
	diag := d.Diagnose(baseEvent(), PrereqSummary{}, session)
	if diag.FailMode != CognitiveFatigue {
		t.Fatalf("fail mode = %s, want cognitive_fatigue", diag.FailMode)
	}
	if !diag.SuggestBreak {
		t.Error("fatigue diagnosis should suggest a break")
	}
	if diag.Remediation != SlowDown || diag.MinThinkTimeMs != 3000 {
		t.Errorf("remediation = %s with min think %d, want slow_down/3000", diag.Remediation, diag.MinThinkTimeMs)
	}

	// Early in the session the rule is off regardless of accuracy.
	session.Position = 30
	if diag := d.Diagnose(baseEvent(), PrereqSummary{}, session); diag.FailMode == CognitiveFatigue {
		t.Error("fatigue fired before the position threshold")
	}

	// A short history cannot fill the window.
	session.Position = 31
	session.RecentCorrect = []bool{false, false}
	if diag := d.Diagnose(baseEvent(), PrereqSummary{}, session); diag.FailMode == CognitiveFatigue {
		t.Error("fatigue fired without a full window")
	}

	// Only the tail of a long history counts.
	session.RecentCorrect = []bool{false, false, false, false, false, true, true, true, true, true}
	if diag := d.Diagnose(baseEvent(), PrereqSummary{}, session); diag.FailMode == CognitiveFatigue {
		t.Error("fatigue fired despite a perfect recent window")
	}
}

func TestDiagnoseEncodingGap(t *testing.T) {
	d := newTestDiagnoser()
	event := baseEvent()
	event.Lapses = 0
	event.StabilityDays = 1.5
	diag := d.Diagnose(event, PrereqSummary{}, SessionContext{})
	if diag.FailMode != EncodingGap {
		t.Fatalf("fail mode = %s, want encoding_gap", diag.FailMode)
	}
	if diag.Remediation != ReTeach {
		t.Errorf("remediation = %s, want re_teach", diag.Remediation)
	}

	// A prior lapse means the material was once encoded.
	event.Lapses = 1
	if diag := d.Diagnose(event, PrereqSummary{}, SessionContext{}); diag.FailMode == EncodingGap {
		t.Error("encoding gap fired despite prior lapses")
	}
}

func TestDiagnosePatternConfusion(t *testing.T) {
	d := newTestDiagnoser()
	event := baseEvent()
	event.AtomType = types.AtomMultipleChoice
	event.SelectedOption = "the mitochondria produces ATP"
	event.CorrectOption = "the mitochondria produces NADH"
	diag := d.Diagnose(event, PrereqSummary{}, SessionContext{})
	if diag.FailMode != PatternConfusion {
		t.Fatalf("fail mode = %s, want pattern_confusion", diag.FailMode)
	}
	if diag.Remediation != Contrastive {
		t.Errorf("remediation = %s, want contrastive", diag.Remediation)
	}

	// A caller-supplied similarity overrides the lexical fallback.
	low := 0.1
	event.DistractorSimilarity = &low
	if diag := d.Diagnose(event, PrereqSummary{}, SessionContext{}); diag.FailMode == PatternConfusion {
		t.Error("explicit low similarity still classified as pattern_confusion")
	}

	// Non-choice atoms never match the rule.
	event.DistractorSimilarity = nil
	event.AtomType = types.AtomNumeric
	if diag := d.Diagnose(event, PrereqSummary{}, SessionContext{}); diag.FailMode == PatternConfusion {
		t.Error("non-multiple-choice atom classified as pattern_confusion")
	}
}

func TestDiagnoseIntegrationGap(t *testing.T) {
	d := newTestDiagnoser()
	prereqs := PrereqSummary{PrereqCount: 3, AvgPrereqMastery: 0.5}
	diag := d.Diagnose(baseEvent(), prereqs, SessionContext{})
	if diag.FailMode != IntegrationGap {
		t.Fatalf("fail mode = %s, want integration_gap", diag.FailMode)
	}
	if diag.Remediation != WorkedExample {
		t.Errorf("remediation = %s, want worked_example", diag.Remediation)
	}

	// Two prereqs is not "many"; strong prereqs are not a gap.
	if diag := d.Diagnose(baseEvent(), PrereqSummary{PrereqCount: 2, AvgPrereqMastery: 0.5}, SessionContext{}); diag.FailMode == IntegrationGap {
		t.Error("integration gap fired at the prereq count threshold")
	}
	if diag := d.Diagnose(baseEvent(), PrereqSummary{PrereqCount: 3, AvgPrereqMastery: 0.9}, SessionContext{}); diag.FailMode == IntegrationGap {
		t.Error("integration gap fired despite strong prerequisites")
	}
}

// The decision list is ordered: when several rules would match, the earlier
// one wins.
func TestDiagnosePrecedence(t *testing.T) {
	d := newTestDiagnoser()
	event := baseEvent()
	event.ResponseTimeMs = 100 // too fast
	event.Lapses = 0
	event.StabilityDays = 0.5 // also an encoding gap
	session := SessionContext{Position: 40, RecentCorrect: []bool{false, false, false, false, false}}

	diag := d.Diagnose(event, PrereqSummary{PrereqCount: 5, AvgPrereqMastery: 0.1}, session)
	if diag.FailMode != TooFast {
		t.Errorf("fail mode = %s, want too_fast to win precedence", diag.FailMode)
	}

	event.ResponseTimeMs = 9000
	diag = d.Diagnose(event, PrereqSummary{PrereqCount: 5, AvgPrereqMastery: 0.1}, session)
	if diag.FailMode != CognitiveFatigue {
		t.Errorf("fail mode = %s, want cognitive_fatigue before encoding_gap", diag.FailMode)
	}
}

func TestDiagnoseIsDeterministic(t *testing.T) {
	d := newTestDiagnoser()
	event := baseEvent()
	session := SessionContext{Position: 12, RecentCorrect: []bool{true, false, true}}
	first := d.Diagnose(event, PrereqSummary{PrereqCount: 1, AvgPrereqMastery: 0.8}, session)
	for i := 0; i < 10; i++ {
		if got := d.Diagnose(event, PrereqSummary{PrereqCount: 1, AvgPrereqMastery: 0.8}, session); got != first {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestRouteRemediationCoversEveryMode(t *testing.T) {
	want := map[FailMode]Remediation{
		TooFast:          SlowDown,
		CognitiveFatigue: SlowDown,
		EncodingGap:      ReTeach,
		PatternConfusion: Contrastive,
		IntegrationGap:   WorkedExample,
		RetrievalLapse:   SpacedRepeat,
	}
	for mode := TooFast; mode <= RetrievalLapse; mode++ {
		got := RouteRemediation(mode)
		if !got.IsValid() {
			t.Errorf("%s routes to invalid remediation", mode)
		}
		if got != want[mode] {
			t.Errorf("%s routes to %s, want %s", mode, got, want[mode])
		}
	}
}

func TestTokenOverlap(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "binary search tree", "binary search tree", 1.0},
		{"disjoint", "alpha beta", "gamma delta", 0.0},
		{"partial", "red black tree", "avl tree", 0.25},
		{"case and punctuation folded", "The Krebs Cycle.", "the krebs cycle", 1.0},
		{"empty side", "", "something", 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tokenOverlap(tc.a, tc.b); got != tc.want {
				t.Errorf("tokenOverlap(%q, %q) = %.4f, want %.4f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestFailModeJSON(t *testing.T) {
	var m FailMode
	if err := m.UnmarshalJSON([]byte(`"pattern_confusion"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m != PatternConfusion {
		t.Errorf("got %s, want pattern_confusion", m)
	}
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"pattern_confusion"` {
		t.Errorf("marshal = %s", data)
	}
	if err := m.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Error("unknown mode unmarshaled without error")
	}
	if _, err := FailMode(0).MarshalJSON(); err == nil {
		t.Error("zero fail mode marshaled without error")
	}
}
