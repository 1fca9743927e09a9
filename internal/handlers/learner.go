package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Travinkel/cortex-engine/internal/engine/session"
	"github.com/Travinkel/cortex-engine/internal/http/response"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/observability"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// LearnerHandler serves the per-learner surface: mastery lookup, response
// recording, access evaluation, path building and candidate ranking.
type LearnerHandler struct {
	log      *logger.Logger
	usecases *session.Usecases
}

func NewLearnerHandler(log *logger.Logger, usecases *session.Usecases) *LearnerHandler {
	return &LearnerHandler{
		log:      log.With("handler", "LearnerHandler"),
		usecases: usecases,
	}
}

// GET /api/learners/:learner_id/concepts/:concept_id/mastery
func (h *LearnerHandler) GetMastery(c *gin.Context) {
	learnerID, conceptID, ok := learnerConceptIDs(c)
	if !ok {
		return
	}
	state, err := h.usecases.GetOrInitMastery(c.Request.Context(), learnerID, conceptID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, state)
}

type recordResponseRequest struct {
	AtomID         uuid.UUID `json:"atom_id" binding:"required"`
	Correct        bool      `json:"correct"`
	Rating         string    `json:"rating"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	SelectedOption string    `json:"selected_option"`
	CorrectOption  string    `json:"correct_option"`
}

// POST /api/learners/:learner_id/responses
func (h *LearnerHandler) RecordResponse(c *gin.Context) {
	learnerID, ok := learnerID(c)
	if !ok {
		return
	}
	var req recordResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	state, diag, err := h.usecases.RecordResponse(c.Request.Context(), session.RecordResponseInput{
		LearnerID:      learnerID,
		AtomID:         req.AtomID,
		Correct:        req.Correct,
		Rating:         req.Rating,
		ResponseTimeMs: req.ResponseTimeMs,
		SelectedOption: req.SelectedOption,
		CorrectOption:  req.CorrectOption,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}

	if m := observability.Current(); m != nil {
		m.ObserveResponse(req.Correct, string(state.Level))
		m.ObserveMasteryLevel(string(state.Level))
		if diag != nil {
			m.ObserveDiagnosis(diag.FailMode.String(), diag.Remediation.String())
		}
	}

	response.RespondOK(c, gin.H{
		"mastery":   state,
		"diagnosis": diag,
	})
}

// GET /api/learners/:learner_id/mastery
func (h *LearnerHandler) ListMastery(c *gin.Context) {
	learnerID, ok := learnerID(c)
	if !ok {
		return
	}
	states, err := h.usecases.ListMastery(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"mastery": states})
}

// GET /api/learners/:learner_id/responses?limit=N
func (h *LearnerHandler) ListResponses(c *gin.Context) {
	learnerID, ok := learnerID(c)
	if !ok {
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	events, err := h.usecases.ListRecentResponses(c.Request.Context(), learnerID, limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"responses": events})
}

// GET /api/learners/:learner_id/waivers
func (h *LearnerHandler) ListWaivers(c *gin.Context) {
	learnerID, ok := learnerID(c)
	if !ok {
		return
	}
	waivers, err := h.usecases.ListWaivers(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"waivers": waivers})
}

// GET /api/learners/:learner_id/concepts/:concept_id/access
func (h *LearnerHandler) EvaluateAccess(c *gin.Context) {
	learnerID, conceptID, ok := learnerConceptIDs(c)
	if !ok {
		return
	}
	result, err := h.usecases.EvaluateAccess(c.Request.Context(), learnerID, conceptID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type buildPathRequest struct {
	TargetConceptID uuid.UUID `json:"target_concept_id" binding:"required"`
	TargetMastery   float64   `json:"target_mastery"`
}

// POST /api/learners/:learner_id/path
func (h *LearnerHandler) BuildPath(c *gin.Context) {
	learnerID, ok := learnerID(c)
	if !ok {
		return
	}
	var req buildPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	start := time.Now()
	result, err := h.usecases.BuildLearningPath(c.Request.Context(), learnerID, req.TargetConceptID, req.TargetMastery)
	if err != nil {
		if m := observability.Current(); m != nil {
			m.ObservePathBuild("error", time.Since(start), 0, nil)
		}
		response.RespondFromError(c, err)
		return
	}

	if m := observability.Current(); m != nil {
		status := "complete"
		if len(result.Gaps) > 0 {
			status = "gapped"
		}
		gapTypes := make([]types.AtomType, 0, len(result.Gaps))
		for _, gap := range result.Gaps {
			gapTypes = append(gapTypes, gap.AtomType)
		}
		m.ObservePathBuild(status, time.Since(start), len(result.Atoms), gapTypes)
	}

	response.RespondOK(c, result)
}

type rankRequest struct {
	CandidateAtomIDs     []uuid.UUID `json:"candidate_atom_ids" binding:"required"`
	ActiveGoalConceptIDs []uuid.UUID `json:"active_goal_concept_ids"`
}

// POST /api/learners/:learner_id/rank
func (h *LearnerHandler) RankCandidates(c *gin.Context) {
	learnerID, ok := learnerID(c)
	if !ok {
		return
	}
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	start := time.Now()
	ranked, err := h.usecases.RankCandidates(c.Request.Context(), learnerID, req.CandidateAtomIDs, req.ActiveGoalConceptIDs)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}

	if m := observability.Current(); m != nil {
		substituted := 0
		for _, item := range ranked {
			if item.Substituted {
				substituted++
			}
		}
		m.ObserveRank(time.Since(start), substituted)
	}

	response.RespondOK(c, gin.H{"ranked": ranked})
}

func learnerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("learner_id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func learnerConceptIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	lid, ok := learnerID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	cid, err := uuid.Parse(c.Param("concept_id"))
	if err != nil || cid == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_concept_id", err)
		return uuid.Nil, uuid.Nil, false
	}
	return lid, cid, true
}
