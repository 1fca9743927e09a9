// Package config collects every tunable constant of the adaptive engine in
// one place. The defaults come from the source curriculum design and have not
// been empirically validated, so nothing here is hard-coded at call sites:
// hosts may override any value through a YAML file named by ENGINE_PARAMS_PATH.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mastery holds the estimator constants.
type Mastery struct {
	ReviewWeightCap      int     `yaml:"review_weight_cap"`      // caps over-reviewed atoms' influence
	QuizWindow           int     `yaml:"quiz_window"`            // how many recent quiz attempts count
	ReviewBlend          float64 `yaml:"review_blend"`           // weight of review mastery in the blend
	QuizBlend            float64 `yaml:"quiz_blend"`             // weight of quiz mastery in the blend
	LevelDeveloping      float64 `yaml:"level_developing"`
	LevelProficient      float64 `yaml:"level_proficient"`
	LevelMastery         float64 `yaml:"level_mastery"`
	GrowthHard           float64 `yaml:"growth_hard"`
	GrowthGood           float64 `yaml:"growth_good"`
	GrowthEasy           float64 `yaml:"growth_easy"`
	AgainStabilityFactor float64 `yaml:"again_stability_factor"`
	DifficultyInc        float64 `yaml:"difficulty_inc"`
	DifficultyDec        float64 `yaml:"difficulty_dec"`
	MinStabilityDays     float64 `yaml:"min_stability_days"`
}

// Graph holds gating and waiver policy constants.
type Graph struct {
	ThresholdFoundation  float64 `yaml:"threshold_foundation"`
	ThresholdIntegration float64 `yaml:"threshold_integration"`
	ThresholdMastery     float64 `yaml:"threshold_mastery"`
	ChainDepthCap        int     `yaml:"chain_depth_cap"`
	ChallengeWaiverFloor float64 `yaml:"challenge_waiver_floor"` // mastery required on all prereqs to earn a challenge waiver
}

// Sequencer holds path-building constants.
type Sequencer struct {
	DueRetrievability float64 `yaml:"due_retrievability"` // below this an atom is due for review
	PerAtomGain       float64 `yaml:"per_atom_gain"`      // projected mastery gain per presented atom
	MaxAtomsPerPath   int     `yaml:"max_atoms_per_path"`
}

// Diagnosis holds the failure-classification thresholds.
type Diagnosis struct {
	TooFastRatio        float64 `yaml:"too_fast_ratio"`        // response_time < ratio * expected_time
	FatiguePosition     int     `yaml:"fatigue_position"`      // session position after which fatigue applies
	FatigueAccuracy     float64 `yaml:"fatigue_accuracy"`      // rolling accuracy floor
	FatigueWindow       int     `yaml:"fatigue_window"`        // rolling window length
	EncodingStability   float64 `yaml:"encoding_stability"`    // below this with zero lapses = never encoded
	DistractorSimilar   float64 `yaml:"distractor_similar"`    // similarity above this = pattern confusion
	IntegrationPrereqs  int     `yaml:"integration_prereqs"`   // more than this many prereqs
	IntegrationMastery  float64 `yaml:"integration_mastery"`   // avg prereq mastery below this
	ExpectedTimeBaseMs  int64   `yaml:"expected_time_base_ms"` // expected think time for difficulty 0
	ExpectedTimeSpanMs  int64   `yaml:"expected_time_span_ms"` // added think time at difficulty 1
	MinimumThinkTimeMs  int64   `yaml:"minimum_think_time_ms"` // enforced on slow_down remediation
	BreakSuggestionMins int     `yaml:"break_suggestion_mins"`
}

// Ranking holds the focus-stream weights.
type Ranking struct {
	WeightDecay      float64 `yaml:"weight_decay"`
	WeightCentrality float64 `yaml:"weight_centrality"`
	WeightPath       float64 `yaml:"weight_path"`
	WeightNovelty    float64 `yaml:"weight_novelty"`
}

// Params is the complete engine configuration.
type Params struct {
	Mastery   Mastery   `yaml:"mastery"`
	Graph     Graph     `yaml:"graph"`
	Sequencer Sequencer `yaml:"sequencer"`
	Diagnosis Diagnosis `yaml:"diagnosis"`
	Ranking   Ranking   `yaml:"ranking"`
}

// Default returns the engine defaults.
func Default() Params {
	return Params{
		Mastery: Mastery{
			ReviewWeightCap:      20,
			QuizWindow:           3,
			ReviewBlend:          0.625,
			QuizBlend:            0.375,
			LevelDeveloping:      0.40,
			LevelProficient:      0.65,
			LevelMastery:         0.85,
			GrowthHard:           1.2,
			GrowthGood:           2.5,
			GrowthEasy:           3.5,
			AgainStabilityFactor: 0.2,
			DifficultyInc:        0.15,
			DifficultyDec:        0.05,
			MinStabilityDays:     1.0,
		},
		Graph: Graph{
			ThresholdFoundation:  0.40,
			ThresholdIntegration: 0.65,
			ThresholdMastery:     0.85,
			ChainDepthCap:        10,
			ChallengeWaiverFloor: 0.95,
		},
		Sequencer: Sequencer{
			DueRetrievability: 0.85,
			PerAtomGain:       0.05,
			MaxAtomsPerPath:   200,
		},
		Diagnosis: Diagnosis{
			TooFastRatio:        0.5,
			FatiguePosition:     30,
			FatigueAccuracy:     0.6,
			FatigueWindow:       5,
			EncodingStability:   2.0,
			DistractorSimilar:   0.6,
			IntegrationPrereqs:  2,
			IntegrationMastery:  0.65,
			ExpectedTimeBaseMs:  4000,
			ExpectedTimeSpanMs:  12000,
			MinimumThinkTimeMs:  3000,
			BreakSuggestionMins: 10,
		},
		Ranking: Ranking{
			WeightDecay:      0.40,
			WeightCentrality: 0.20,
			WeightPath:       0.25,
			WeightNovelty:    0.15,
		},
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// returns the defaults unchanged.
func Load(path string) (Params, error) {
	params := Default()
	if path == "" {
		return params, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("read engine params: %w", err)
	}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("parse engine params: %w", err)
	}
	return params, nil
}
