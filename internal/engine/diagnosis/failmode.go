package diagnosis

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// FailMode classifies why an answer was wrong. The set is closed: every mode
// must route to a remediation in RouteRemediation, which the exhaustive
// switch there guarantees at compile time.
type FailMode int

const (
	TooFast FailMode = iota + 1 // impulsive guess, answered faster than plausible
	CognitiveFatigue
	EncodingGap // never properly learned in the first place
	PatternConfusion
	IntegrationGap
	RetrievalLapse // ordinary forgetting; the safe fallback
)

// Remediation names the strategy routed for a fail mode.
type Remediation int

const (
	ReTeach Remediation = iota + 1
	SpacedRepeat
	Contrastive
	WorkedExample
	SlowDown
)

var (
	failModeNames = [...]string{
		TooFast:          "too_fast",
		CognitiveFatigue: "cognitive_fatigue",
		EncodingGap:      "encoding_gap",
		PatternConfusion: "pattern_confusion",
		IntegrationGap:   "integration_gap",
		RetrievalLapse:   "retrieval_lapse",
	}
	failModeByName = map[string]FailMode{
		"too_fast":          TooFast,
		"cognitive_fatigue": CognitiveFatigue,
		"encoding_gap":      EncodingGap,
		"pattern_confusion": PatternConfusion,
		"integration_gap":   IntegrationGap,
		"retrieval_lapse":   RetrievalLapse,
	}
	remediationNames = [...]string{
		ReTeach:       "re_teach",
		SpacedRepeat:  "spaced_repeat",
		Contrastive:   "contrastive",
		WorkedExample: "worked_example",
		SlowDown:      "slow_down",
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = FailMode(0)
	_ json.Marshaler           = FailMode(0)
	_ json.Unmarshaler         = (*FailMode)(nil)
	_ encoding.TextMarshaler   = FailMode(0)
	_ fmt.Stringer             = Remediation(0)
	_ json.Marshaler           = Remediation(0)
)

func (m FailMode) IsValid() bool { return m >= TooFast && m <= RetrievalLapse }

func (m FailMode) String() string {
	if m.IsValid() {
		return failModeNames[m]
	}
	return fmt.Sprintf("FailMode(%d)", int(m))
}

func (m FailMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("diagnosis: invalid fail mode %d", int(m))
	}
	return []byte(failModeNames[m]), nil
}

func (m FailMode) MarshalJSON() ([]byte, error) {
	text, err := m.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (m *FailMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("diagnosis: invalid fail mode %s", data)
	}
	v, ok := failModeByName[s]
	if !ok {
		return fmt.Errorf("diagnosis: invalid fail mode %q", s)
	}
	*m = v
	return nil
}

func (r Remediation) IsValid() bool { return r >= ReTeach && r <= SlowDown }

func (r Remediation) String() string {
	if r.IsValid() {
		return remediationNames[r]
	}
	return fmt.Sprintf("Remediation(%d)", int(r))
}

func (r Remediation) MarshalJSON() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("diagnosis: invalid remediation %d", int(r))
	}
	return json.Marshal(remediationNames[r])
}

// RouteRemediation maps every fail mode to its remediation strategy. The
// switch is exhaustive over the closed enum; adding a mode without a route
// fails the default-panic path in tests immediately.
func RouteRemediation(m FailMode) Remediation {
	switch m {
	case EncodingGap:
		return ReTeach
	case RetrievalLapse:
		return SpacedRepeat
	case PatternConfusion:
		return Contrastive
	case IntegrationGap:
		return WorkedExample
	case TooFast, CognitiveFatigue:
		return SlowDown
	default:
		return SpacedRepeat
	}
}
