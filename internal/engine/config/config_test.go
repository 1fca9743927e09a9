package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBlendsAndThresholds(t *testing.T) {
	params := Default()

	if got := params.Mastery.ReviewBlend + params.Mastery.QuizBlend; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("mastery blend weights sum to %.4f, want 1.0", got)
	}
	w := params.Ranking
	if got := w.WeightDecay + w.WeightCentrality + w.WeightPath + w.WeightNovelty; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("ranking weights sum to %.4f, want 1.0", got)
	}

	g := params.Graph
	if !(g.ThresholdFoundation < g.ThresholdIntegration && g.ThresholdIntegration < g.ThresholdMastery) {
		t.Errorf("gating thresholds not ascending: %.2f, %.2f, %.2f",
			g.ThresholdFoundation, g.ThresholdIntegration, g.ThresholdMastery)
	}
	m := params.Mastery
	if !(m.LevelDeveloping < m.LevelProficient && m.LevelProficient < m.LevelMastery) {
		t.Errorf("level boundaries not ascending: %.2f, %.2f, %.2f",
			m.LevelDeveloping, m.LevelProficient, m.LevelMastery)
	}
	if !(m.GrowthHard < m.GrowthGood && m.GrowthGood < m.GrowthEasy) {
		t.Errorf("growth factors not ascending: %.2f, %.2f, %.2f",
			m.GrowthHard, m.GrowthGood, m.GrowthEasy)
	}
	if m.MinStabilityDays <= 0 {
		t.Errorf("min stability = %.2f, want positive", m.MinStabilityDays)
	}
	if params.Sequencer.PerAtomGain <= 0 {
		t.Errorf("per-atom gain = %.2f, want positive", params.Sequencer.PerAtomGain)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	params, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if params != Default() {
		t.Error("empty path did not return the defaults")
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	overlay := `
mastery:
  quiz_window: 5
graph:
  chain_depth_cap: 4
ranking:
  weight_decay: 0.5
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	params, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if params.Mastery.QuizWindow != 5 {
		t.Errorf("quiz window = %d, want the overlay's 5", params.Mastery.QuizWindow)
	}
	if params.Graph.ChainDepthCap != 4 {
		t.Errorf("chain depth cap = %d, want the overlay's 4", params.Graph.ChainDepthCap)
	}
	if params.Ranking.WeightDecay != 0.5 {
		t.Errorf("weight decay = %.2f, want the overlay's 0.5", params.Ranking.WeightDecay)
	}
	// Untouched values keep their defaults.
	if params.Mastery.ReviewBlend != Default().Mastery.ReviewBlend {
		t.Errorf("review blend = %.4f, want the default", params.Mastery.ReviewBlend)
	}
	if params.Diagnosis != Default().Diagnosis {
		t.Error("diagnosis section changed without an overlay")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file loaded without error")
	}
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("mastery: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml loaded without error")
	}
}
