package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Travinkel/cortex-engine/internal/engine/session"
	"github.com/Travinkel/cortex-engine/internal/http/response"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/observability"
	"github.com/Travinkel/cortex-engine/internal/types"
)

// GraphHandler serves prerequisite graph mutation and the content gap
// backlog for authoring tools.
type GraphHandler struct {
	log      *logger.Logger
	usecases *session.Usecases
}

func NewGraphHandler(log *logger.Logger, usecases *session.Usecases) *GraphHandler {
	return &GraphHandler{
		log:      log.With("handler", "GraphHandler"),
		usecases: usecases,
	}
}

type addEdgeRequest struct {
	SourceConceptID uuid.UUID `json:"source_concept_id" binding:"required"`
	TargetConceptID uuid.UUID `json:"target_concept_id" binding:"required"`
	Gating          string    `json:"gating"`
	MasteryType     string    `json:"mastery_type"`
	Origin          string    `json:"origin"`
}

// POST /api/graph/edges
// A rejected cycle comes back as 409 with the full would-be cycle chain in
// the error message.
func (h *GraphHandler) AddEdge(c *gin.Context) {
	var req addEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	gating := types.GatingType(req.Gating)
	if gating == "" {
		gating = types.GatingHard
	}
	if gating != types.GatingHard && gating != types.GatingSoft {
		response.RespondError(c, http.StatusBadRequest, "invalid_gating", nil)
		return
	}
	masteryType := types.MasteryType(req.MasteryType)
	if masteryType == "" {
		masteryType = types.MasteryFoundation
	}
	switch masteryType {
	case types.MasteryFoundation, types.MasteryIntegration, types.MasteryMastery:
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_mastery_type", nil)
		return
	}
	origin := types.EdgeOrigin(req.Origin)
	if origin == "" {
		origin = types.OriginExplicit
	}
	switch origin {
	case types.OriginExplicit, types.OriginTag, types.OriginInferred, types.OriginImported:
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_origin", nil)
		return
	}

	edge, err := h.usecases.AddPrerequisite(c.Request.Context(), req.SourceConceptID, req.TargetConceptID, gating, masteryType, origin)
	if err != nil {
		observability.Current().ObserveEdgeMutation("add", "rejected")
		response.RespondFromError(c, err)
		return
	}
	observability.Current().ObserveEdgeMutation("add", "ok")
	response.RespondCreated(c, edge)
}

// DELETE /api/graph/edges/:edge_id
func (h *GraphHandler) RevokeEdge(c *gin.Context) {
	edgeID, err := uuid.Parse(c.Param("edge_id"))
	if err != nil || edgeID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_edge_id", err)
		return
	}
	if err := h.usecases.RevokePrerequisite(c.Request.Context(), edgeID); err != nil {
		observability.Current().ObserveEdgeMutation("revoke", "rejected")
		response.RespondFromError(c, err)
		return
	}
	observability.Current().ObserveEdgeMutation("revoke", "ok")
	c.Status(http.StatusNoContent)
}

type grantWaiverRequest struct {
	LearnerID  uuid.UUID      `json:"learner_id" binding:"required"`
	WaiverType string         `json:"waiver_type" binding:"required"`
	GrantedBy  string         `json:"granted_by"`
	ExpiresAt  *time.Time     `json:"expires_at"`
	Evidence   datatypes.JSON `json:"evidence"`
}

// POST /api/graph/edges/:edge_id/waivers
func (h *GraphHandler) GrantWaiver(c *gin.Context) {
	edgeID, err := uuid.Parse(c.Param("edge_id"))
	if err != nil || edgeID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_edge_id", err)
		return
	}
	var req grantWaiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	waiver, err := h.usecases.GrantWaiver(c.Request.Context(), session.GrantWaiverInput{
		EdgeID:     edgeID,
		LearnerID:  req.LearnerID,
		WaiverType: types.WaiverType(req.WaiverType),
		GrantedBy:  req.GrantedBy,
		ExpiresAt:  req.ExpiresAt,
		Evidence:   req.Evidence,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	observability.Current().ObserveWaiver(string(waiver.WaiverType))
	response.RespondCreated(c, waiver)
}

// GET /api/gaps?limit=N
func (h *GraphHandler) ListGaps(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	gaps, err := h.usecases.ListContentGaps(c.Request.Context(), limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"gaps": gaps})
}
