package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/types"
)

func TestOpenSQLiteMigratesFullSchema(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	gormDB, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	for _, model := range []interface{}{
		&types.Concept{},
		&types.Atom{},
		&types.PrerequisiteEdge{},
		&types.Waiver{},
		&types.MasteryState{},
		&types.ResponseEvent{},
		&types.ContentGap{},
	} {
		if !gormDB.Migrator().HasTable(model) {
			t.Errorf("missing table for %T", model)
		}
	}
}

func TestOpenSQLiteAcceptsClientSideIDs(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	gormDB, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	concept := &types.Concept{ID: uuid.New(), Name: "limits"}
	if err := gormDB.Create(concept).Error; err != nil {
		t.Fatalf("create concept: %v", err)
	}

	var loaded types.Concept
	if err := gormDB.First(&loaded, "id = ?", concept.ID).Error; err != nil {
		t.Fatalf("load concept: %v", err)
	}
	if loaded.Status != types.ConceptToLearn {
		t.Errorf("status default: got %q, want %q", loaded.Status, types.ConceptToLearn)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}

	edge := &types.PrerequisiteEdge{
		ID:              uuid.New(),
		SourceConceptID: uuid.New(),
		TargetConceptID: concept.ID,
		GatingType:      types.GatingHard,
		MasteryType:     types.MasteryFoundation,
	}
	if err := gormDB.Create(edge).Error; err != nil {
		t.Fatalf("create edge: %v", err)
	}
	var loadedEdge types.PrerequisiteEdge
	if err := gormDB.First(&loadedEdge, "id = ?", edge.ID).Error; err != nil {
		t.Fatalf("load edge: %v", err)
	}
	if loadedEdge.Status != types.EdgeActive {
		t.Errorf("edge status default: got %q, want %q", loadedEdge.Status, types.EdgeActive)
	}
	if loadedEdge.Origin != types.OriginExplicit {
		t.Errorf("edge origin default: got %q, want %q", loadedEdge.Origin, types.OriginExplicit)
	}
}
