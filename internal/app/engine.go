package app

import (
	"context"

	"gorm.io/gorm"

	datagraph "github.com/Travinkel/cortex-engine/internal/data/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/config"
	"github.com/Travinkel/cortex-engine/internal/engine/diagnosis"
	"github.com/Travinkel/cortex-engine/internal/engine/focus"
	"github.com/Travinkel/cortex-engine/internal/engine/graph"
	"github.com/Travinkel/cortex-engine/internal/engine/mastery"
	"github.com/Travinkel/cortex-engine/internal/engine/sequencer"
	"github.com/Travinkel/cortex-engine/internal/engine/session"
	"github.com/Travinkel/cortex-engine/internal/logger"
)

type Engine struct {
	Params    config.Params
	Estimator *mastery.Estimator
	Diagnoser *diagnosis.Diagnoser
	Sequencer *sequencer.Sequencer
	Ranker    *focus.Ranker
	Graph     *graph.Graph
	Usecases  *session.Usecases
}

func wireEngine(ctx context.Context, db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Engine, error) {
	log.Info("Wiring engine...")

	params, err := config.Load(cfg.ParamsPath)
	if err != nil {
		return Engine{}, err
	}

	estimator := mastery.NewEstimator(params.Mastery)
	diagnoser := diagnosis.NewDiagnoser(params.Diagnosis)
	seq := sequencer.New(estimator, params.Sequencer)
	ranker := focus.NewRanker(estimator, params.Graph.ChainDepthCap)

	mirror := datagraph.NewStore(clients.Neo4j, log)
	g := graph.New(reposet.PrerequisiteEdge, mirror, params.Graph, log)
	if err := g.Load(ctx); err != nil {
		return Engine{}, err
	}

	usecases := session.New(session.Deps{
		DB:        db,
		Log:       log,
		Atoms:     reposet.Atom,
		Concepts:  reposet.Concept,
		Mastery:   reposet.MasteryState,
		Responses: reposet.ResponseEvent,
		Waivers:   reposet.Waiver,
		Gaps:      reposet.ContentGap,
		Graph:     g,
		Estimator: estimator,
		Diagnoser: diagnoser,
		Sequencer: seq,
		Ranker:    ranker,
		Sessions:  clients.Sessions,
		Params:    params,
	})

	return Engine{
		Params:    params,
		Estimator: estimator,
		Diagnoser: diagnoser,
		Sequencer: seq,
		Ranker:    ranker,
		Graph:     g,
		Usecases:  usecases,
	}, nil
}
