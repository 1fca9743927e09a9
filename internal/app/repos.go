package app

import (
	"gorm.io/gorm"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/repos"
)

type Repos struct {
	Concept          repos.ConceptRepo
	Atom             repos.AtomRepo
	PrerequisiteEdge repos.PrerequisiteEdgeRepo
	Waiver           repos.WaiverRepo
	MasteryState     repos.MasteryStateRepo
	ResponseEvent    repos.ResponseEventRepo
	ContentGap       repos.ContentGapRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Concept:          repos.NewConceptRepo(db, log),
		Atom:             repos.NewAtomRepo(db, log),
		PrerequisiteEdge: repos.NewPrerequisiteEdgeRepo(db, log),
		Waiver:           repos.NewWaiverRepo(db, log),
		MasteryState:     repos.NewMasteryStateRepo(db, log),
		ResponseEvent:    repos.NewResponseEventRepo(db, log),
		ContentGap:       repos.NewContentGapRepo(db, log),
	}
}
