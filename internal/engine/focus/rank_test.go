package focus

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/db"
	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/engine/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/mastery"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/repos"
)

const epsilon = 1e-4

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %.6f, want %.6f", name, got, want)
	}
}

func newTestRanker(t *testing.T) *Ranker {
	t.Helper()
	params := config.Default()
	return NewRanker(mastery.NewEstimator(params.Mastery), params.Graph.ChainDepthCap)
}

func emptySnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	gormDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	g := graph.New(repos.NewPrerequisiteEdgeRepo(gormDB, log), nil, config.Default().Graph, log)
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("load graph: %v", err)
	}
	return g.Snapshot()
}

func TestScoreBlendsComponents(t *testing.T) {
	r := newTestRanker(t)
	conceptID := uuid.New()
	rctx := Context{
		Snapshot: emptySnapshot(t),
		Weights:  config.Default().Ranking,
		OnPath:   map[uuid.UUID]bool{conceptID: true},
	}
	c := Candidate{
		AtomID:          uuid.New(),
		ConceptID:       conceptID,
		StabilityDays:   14,
		DaysSinceReview: 14, // retrievability exactly 0.9, so decay 0.1
		ReviewCount:     0,
	}

	ranked := r.Score(c, rctx)
	assertFloat(t, "decay", ranked.Breakdown.Decay, 0.1)
	assertFloat(t, "centrality", ranked.Breakdown.Centrality, 0)
	assertFloat(t, "path relevance", ranked.Breakdown.PathRelevance, 1)
	assertFloat(t, "novelty", ranked.Breakdown.Novelty, 1)
	// 0.40*0.1 + 0.20*0 + 0.25*1 + 0.15*1
	assertFloat(t, "z-score", ranked.ZScore, 0.44)
}

func TestScoreOffPathVeteranAtom(t *testing.T) {
	r := newTestRanker(t)
	rctx := Context{
		Snapshot: emptySnapshot(t),
		Weights:  config.Default().Ranking,
	}
	c := Candidate{
		AtomID:          uuid.New(),
		ConceptID:       uuid.New(),
		StabilityDays:   10,
		DaysSinceReview: 0, // fully retained
		ReviewCount:     9, // novelty 1/10
	}
	ranked := r.Score(c, rctx)
	assertFloat(t, "decay", ranked.Breakdown.Decay, 0)
	assertFloat(t, "path relevance", ranked.Breakdown.PathRelevance, 0)
	assertFloat(t, "novelty", ranked.Breakdown.Novelty, 0.1)
	assertFloat(t, "z-score", ranked.ZScore, 0.015)
}

func TestRankOrdersByDescendingZ(t *testing.T) {
	r := newTestRanker(t)
	rctx := Context{Snapshot: emptySnapshot(t), Weights: config.Default().Ranking}

	overdue := Candidate{AtomID: uuid.New(), ConceptID: uuid.New(), StabilityDays: 2, DaysSinceReview: 30, ReviewCount: 5}
	fresh := Candidate{AtomID: uuid.New(), ConceptID: uuid.New(), StabilityDays: 30, DaysSinceReview: 1, ReviewCount: 5}

	ranked, err := r.Rank([]Candidate{fresh, overdue}, rctx)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranked %d atoms, want 2", len(ranked))
	}
	if ranked[0].AtomID != overdue.AtomID {
		t.Errorf("first atom = %s, want the overdue one", ranked[0].AtomID)
	}
	if ranked[0].ZScore < ranked[1].ZScore {
		t.Errorf("ranking not descending: %.4f then %.4f", ranked[0].ZScore, ranked[1].ZScore)
	}
}

func TestRankBreaksTiesByAtomID(t *testing.T) {
	r := newTestRanker(t)
	rctx := Context{Snapshot: emptySnapshot(t), Weights: config.Default().Ranking}

	// Identical signals, so only the id ordering separates them.
	a := Candidate{AtomID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"), ConceptID: uuid.New(), StabilityDays: 5, DaysSinceReview: 5, ReviewCount: 2}
	b := Candidate{AtomID: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"), ConceptID: uuid.New(), StabilityDays: 5, DaysSinceReview: 5, ReviewCount: 2}

	for i := 0; i < 5; i++ {
		ranked, err := r.Rank([]Candidate{b, a}, rctx)
		if err != nil {
			t.Fatalf("rank: %v", err)
		}
		if ranked[0].AtomID != a.AtomID || ranked[1].AtomID != b.AtomID {
			t.Fatalf("run %d: tie broken unstably: %s then %s", i, ranked[0].AtomID, ranked[1].AtomID)
		}
	}
}

func TestRankSubstitutesBlockedAtom(t *testing.T) {
	r := newTestRanker(t)
	blockedConcept := uuid.New()
	prereqConcept := uuid.New()

	// The blocked atom is severely overdue and would otherwise rank first.
	blockedAtom := Candidate{AtomID: uuid.New(), ConceptID: blockedConcept, StabilityDays: 1, DaysSinceReview: 60, ReviewCount: 0}
	prereqAtom := Candidate{AtomID: uuid.New(), ConceptID: prereqConcept, StabilityDays: 10, DaysSinceReview: 1, ReviewCount: 8}

	rctx := Context{
		Snapshot: emptySnapshot(t),
		Weights:  config.Default().Ranking,
		Access: func(conceptID uuid.UUID) (graph.AccessResult, error) {
			if conceptID == blockedConcept {
				return graph.AccessResult{
					ConceptID: conceptID,
					Status:    graph.AccessBlocked,
					BlockingEdges: []graph.BlockingEdge{
						{EdgeID: uuid.New(), TargetConceptID: prereqConcept, Required: 0.4, Current: 0.1, Gap: 0.3},
					},
				}, nil
			}
			return graph.AccessResult{ConceptID: conceptID, Status: graph.AccessAllowed, Access: true}, nil
		},
	}

	ranked, err := r.Rank([]Candidate{blockedAtom, prereqAtom}, rctx)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("ranked %d atoms, want 1", len(ranked))
	}
	if ranked[0].AtomID != prereqAtom.AtomID {
		t.Errorf("surfaced %s, want the prerequisite atom", ranked[0].AtomID)
	}
	if !ranked[0].Substituted {
		t.Error("substitute not flagged")
	}
}

func TestRankSubstitutionRespectsDepthCap(t *testing.T) {
	// x is blocked by y, y is blocked by z. With a depth cap of 1 the chain
	// from x cannot reach z, so nothing from that chain surfaces.
	params := config.Default()
	shallow := NewRanker(mastery.NewEstimator(params.Mastery), 1)
	deep := NewRanker(mastery.NewEstimator(params.Mastery), 2)

	x, y, z := uuid.New(), uuid.New(), uuid.New()
	atomX := Candidate{AtomID: uuid.New(), ConceptID: x, StabilityDays: 1, DaysSinceReview: 60}
	atomY := Candidate{AtomID: uuid.New(), ConceptID: y, StabilityDays: 1, DaysSinceReview: 30}
	atomZ := Candidate{AtomID: uuid.New(), ConceptID: z, StabilityDays: 1, DaysSinceReview: 10}

	rctx := Context{
		Snapshot: emptySnapshot(t),
		Weights:  params.Ranking,
		Access: func(conceptID uuid.UUID) (graph.AccessResult, error) {
			switch conceptID {
			case x:
				return graph.AccessResult{Status: graph.AccessBlocked, BlockingEdges: []graph.BlockingEdge{{TargetConceptID: y}}}, nil
			case y:
				return graph.AccessResult{Status: graph.AccessBlocked, BlockingEdges: []graph.BlockingEdge{{TargetConceptID: z}}}, nil
			default:
				return graph.AccessResult{Status: graph.AccessAllowed, Access: true}, nil
			}
		},
	}
	candidates := []Candidate{atomX, atomY, atomZ}

	ranked, err := shallow.Rank(candidates, rctx)
	if err != nil {
		t.Fatalf("shallow rank: %v", err)
	}
	// atomX's chain dead-ends at the cap; atomY resolves to atomZ directly.
	if len(ranked) != 1 || ranked[0].AtomID != atomZ.AtomID {
		t.Fatalf("shallow ranked = %+v, want only the root prerequisite atom", ranked)
	}

	ranked, err = deep.Rank(candidates, rctx)
	if err != nil {
		t.Fatalf("deep rank: %v", err)
	}
	if len(ranked) != 1 || ranked[0].AtomID != atomZ.AtomID {
		t.Fatalf("deep ranked = %+v, want the root prerequisite atom", ranked)
	}
	if !ranked[0].Substituted {
		t.Error("substitute not flagged")
	}
}

func TestRankWithoutAccessSkipsBacktracking(t *testing.T) {
	r := newTestRanker(t)
	rctx := Context{Snapshot: emptySnapshot(t), Weights: config.Default().Ranking}
	c := Candidate{AtomID: uuid.New(), ConceptID: uuid.New(), StabilityDays: 1, DaysSinceReview: 10}

	ranked, err := r.Rank([]Candidate{c}, rctx)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Substituted {
		t.Errorf("ranked = %+v, want the single atom unsubstituted", ranked)
	}
}
