// internal/api/packet_handler.go
package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/service"
	"alcyxob/wellness-portal/internal/storage"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PacketHandler struct {
	packetService service.PacketService
	fileStorage   storage.FileStorage
}

func NewPacketHandler(packetService service.PacketService, fileStorage storage.FileStorage) *PacketHandler {
	return &PacketHandler{
		packetService: packetService,
		fileStorage:   fileStorage,
	}
}

// --- DTOs ---

type CreatePacketRequest struct {
	UserID     string               `json:"userId" binding:"required"`
	PacketType domain.PacketType    `json:"packetType" binding:"required,oneof=EXERCISE_PROGRAM NUTRITION_PLAN GENERAL_WELLNESS"`
	Content    domain.PacketContent `json:"content" binding:"required"`
}

type UpdateContentRequest struct {
	ExpectedVersion int                  `json:"expectedVersion" binding:"required,min=1"`
	Content         domain.PacketContent `json:"content" binding:"required"`
}

type UpdateExerciseParameterRequest struct {
	ExpectedVersion int                             `json:"expectedVersion" binding:"required,min=1"`
	Week            int                             `json:"week"`
	Day             int                             `json:"day"`
	Exercise        int                             `json:"exercise"`
	Update          service.ExerciseParameterUpdate `json:"update" binding:"required"`
}

type UpdateNutritionItemRequest struct {
	ExpectedVersion int             `json:"expectedVersion" binding:"required,min=1"`
	Meal            int             `json:"meal"`
	Item            int             `json:"item"`
	Value           domain.MealItem `json:"value" binding:"required"`
}

type CoachNotesRequest struct {
	ExpectedVersion int    `json:"expectedVersion" binding:"required,min=1"`
	Notes           string `json:"notes" binding:"required"`
}

// TransitionRequest carries the version the caller last read; a stale value
// gets a 409 instead of resurrecting an old state.
type TransitionRequest struct {
	ExpectedVersion int `json:"expectedVersion" binding:"required,min=1"`
}

type RestoreVersionRequest struct {
	ExpectedVersion int `json:"expectedVersion" binding:"required,min=1"`
}

type PacketResponse struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"userId"`
	PacketType          domain.PacketType    `json:"packetType"`
	Status              domain.PacketStatus  `json:"status"`
	Version             int                  `json:"version"`
	Content             domain.PacketContent `json:"content"`
	CoachNotes          string               `json:"coachNotes,omitempty"`
	RenderedArtifactRef string               `json:"renderedArtifactRef,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
	PublishedAt         *time.Time           `json:"publishedAt,omitempty"`
	PublishedBy         *string              `json:"publishedBy,omitempty"`
	LastModifiedBy      string               `json:"lastModifiedBy"`
}

type PacketVersionResponse struct {
	Version    int                  `json:"version"`
	Content    domain.PacketContent `json:"content"`
	CoachNotes string               `json:"coachNotes,omitempty"`
	RestoreOf  *int                 `json:"restoreOf,omitempty"`
	AuthorID   string               `json:"authorId"`
	CreatedAt  time.Time            `json:"createdAt"`
}

type ArtifactURLResponse struct {
	URL string `json:"url"`
}

func mapPacketToResponse(p *domain.Packet) PacketResponse {
	resp := PacketResponse{
		ID:                  p.ID.Hex(),
		UserID:              p.UserID.Hex(),
		PacketType:          p.PacketType,
		Status:              p.Status,
		Version:             p.Version,
		Content:             p.Content,
		CoachNotes:          p.CoachNotes,
		RenderedArtifactRef: p.RenderedArtifactRef,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		PublishedAt:         p.PublishedAt,
		LastModifiedBy:      p.LastModifiedBy.Hex(),
	}
	if p.PublishedBy != nil {
		publishedBy := p.PublishedBy.Hex()
		resp.PublishedBy = &publishedBy
	}
	return resp
}

func mapVersionToResponse(v domain.PacketVersion) PacketVersionResponse {
	return PacketVersionResponse{
		Version:    v.Version,
		Content:    v.Content,
		CoachNotes: v.CoachNotes,
		RestoreOf:  v.RestoreOf,
		AuthorID:   v.AuthorID.Hex(),
		CreatedAt:  v.CreatedAt,
	}
}

// respondPacketError maps service errors to HTTP status codes.
func respondPacketError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPacketNotFound), errors.Is(err, service.ErrPacketVersionNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrPacketArchived):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrVersionConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrContentShapeMismatch):
		abortWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrArtifactRender):
		abortWithError(c, http.StatusBadGateway, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// requestIDs pulls the actor from the token and the packet ID from the path.
func (h *PacketHandler) requestIDs(c *gin.Context) (actorID, packetID primitive.ObjectID, ok bool) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	packetID, err = primitive.ObjectIDFromHex(c.Param("packetId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid packet ID format.")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return actorID, packetID, true
}

// --- Handler Methods ---

// CreatePacket godoc
// @Summary Create a packet for a client
// @Description Creates a DRAFT packet at version 1 once the client's required assessments are complete.
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packet body CreatePacketRequest true "Packet details"
// @Success 201 {object} PacketResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 422 {object} gin.H "Content shape mismatch"
// @Router /packets [post]
func (h *PacketHandler) CreatePacket(c *gin.Context) {
	var req CreatePacketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	actorID, err := getActorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format.")
		return
	}

	packet, err := h.packetService.CreatePacket(c.Request.Context(), actorID, userID, req.PacketType, req.Content)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusCreated, mapPacketToResponse(packet))
}

// GetPacket godoc
// @Summary Get a packet
// @Description Staff see any packet; clients only their own published ones.
// @Tags Packets
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId} [get]
func (h *PacketHandler) GetPacket(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	packet, err := h.packetService.GetPacket(c.Request.Context(), actorID, packetID)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// UpdateContent godoc
// @Summary Replace a packet's content
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body UpdateContentRequest true "New content and the version it was based on"
// @Success 200 {object} PacketResponse
// @Failure 409 {object} gin.H "Version conflict or archived"
// @Failure 422 {object} gin.H "Content shape mismatch"
// @Router /packets/{packetId}/content [put]
func (h *PacketHandler) UpdateContent(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packet, err := h.packetService.UpdateContent(c.Request.Context(), actorID, packetID, req.ExpectedVersion, req.Content)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// UpdateExerciseParameter godoc
// @Summary Adjust one exercise prescription in an exercise-program packet
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body UpdateExerciseParameterRequest true "Block address and parameter changes"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId}/exercise-parameter [patch]
func (h *PacketHandler) UpdateExerciseParameter(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	var req UpdateExerciseParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packet, err := h.packetService.UpdateExerciseParameter(c.Request.Context(), actorID, packetID, req.ExpectedVersion, req.Week, req.Day, req.Exercise, req.Update)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// UpdateNutritionItem godoc
// @Summary Replace one meal item in a nutrition-plan packet
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body UpdateNutritionItemRequest true "Item address and replacement value"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId}/nutrition-item [patch]
func (h *PacketHandler) UpdateNutritionItem(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	var req UpdateNutritionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packet, err := h.packetService.UpdateNutritionItem(c.Request.Context(), actorID, packetID, req.ExpectedVersion, req.Meal, req.Item, req.Value)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// AddCoachNotes godoc
// @Summary Set coach notes on a packet
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body CoachNotesRequest true "Notes and the version they were based on"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId}/coach-notes [patch]
func (h *PacketHandler) AddCoachNotes(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	var req CoachNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packet, err := h.packetService.AddCoachNotes(c.Request.Context(), actorID, packetID, req.ExpectedVersion, req.Notes)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// transition is shared by the publish/unpublish/archive handlers.
func (h *PacketHandler) transition(c *gin.Context, apply func(actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error)) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packet, err := apply(actorID, packetID, req.ExpectedVersion)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// Publish godoc
// @Summary Publish a packet to its client
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body TransitionRequest true "Version the caller last read"
// @Success 200 {object} PacketResponse
// @Failure 409 {object} gin.H "Invalid transition or version conflict"
// @Router /packets/{packetId}/publish [post]
func (h *PacketHandler) Publish(c *gin.Context) {
	h.transition(c, func(actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error) {
		return h.packetService.Publish(c.Request.Context(), actorID, packetID, expectedVersion)
	})
}

// Unpublish godoc
// @Summary Hide a published packet from its client for revision
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body TransitionRequest true "Version the caller last read"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId}/unpublish [post]
func (h *PacketHandler) Unpublish(c *gin.Context) {
	h.transition(c, func(actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error) {
		return h.packetService.Unpublish(c.Request.Context(), actorID, packetID, expectedVersion)
	})
}

// Archive godoc
// @Summary Archive a packet (terminal)
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param body body TransitionRequest true "Version the caller last read"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId}/archive [post]
func (h *PacketHandler) Archive(c *gin.Context) {
	h.transition(c, func(actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error) {
		return h.packetService.Archive(c.Request.Context(), actorID, packetID, expectedVersion)
	})
}

// ListVersions godoc
// @Summary List a packet's version history, newest first
// @Tags Packets
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Success 200 {array} PacketVersionResponse
// @Router /packets/{packetId}/versions [get]
func (h *PacketHandler) ListVersions(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	versions, err := h.packetService.ListVersions(c.Request.Context(), actorID, packetID)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	responses := make([]PacketVersionResponse, len(versions))
	for i, v := range versions {
		responses[i] = mapVersionToResponse(v)
	}
	c.JSON(http.StatusOK, responses)
}

// RestoreVersion godoc
// @Summary Restore a historical version as a new version
// @Description Appends a new version with the historical content; forward history is preserved.
// @Tags Packets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Param version path int true "Version number to restore"
// @Param body body RestoreVersionRequest true "Version the caller last read"
// @Success 200 {object} PacketResponse
// @Router /packets/{packetId}/versions/{version}/restore [post]
func (h *PacketHandler) RestoreVersion(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}
	versionNumber, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNumber < 1 {
		abortWithError(c, http.StatusBadRequest, "Invalid version number.")
		return
	}
	var req RestoreVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	packet, err := h.packetService.RestoreVersion(c.Request.Context(), actorID, packetID, req.ExpectedVersion, versionNumber)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// RegenerateArtifact godoc
// @Summary Re-render the packet's durable artifact
// @Description Renders current content and replaces the artifact reference. No version bump.
// @Tags Packets
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Success 200 {object} PacketResponse
// @Failure 502 {object} gin.H "Rendering service failed"
// @Router /packets/{packetId}/artifact [post]
func (h *PacketHandler) RegenerateArtifact(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	packet, err := h.packetService.RegenerateArtifact(c.Request.Context(), actorID, packetID)
	if err != nil {
		respondPacketError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapPacketToResponse(packet))
}

// GetArtifactURL godoc
// @Summary Get a temporary download URL for the rendered artifact
// @Tags Packets
// @Produce json
// @Security BearerAuth
// @Param packetId path string true "Packet ID"
// @Success 200 {object} ArtifactURLResponse
// @Failure 404 {object} gin.H "No artifact rendered yet"
// @Router /packets/{packetId}/artifact-url [get]
func (h *PacketHandler) GetArtifactURL(c *gin.Context) {
	actorID, packetID, ok := h.requestIDs(c)
	if !ok {
		return
	}

	packet, err := h.packetService.GetPacket(c.Request.Context(), actorID, packetID)
	if err != nil {
		respondPacketError(c, err)
		return
	}
	if packet.RenderedArtifactRef == "" {
		abortWithError(c, http.StatusNotFound, "Artifact has not been rendered yet.")
		return
	}

	url, err := h.fileStorage.GeneratePresignedDownloadURL(c.Request.Context(), packet.RenderedArtifactRef, storage.DefaultPresignedURLExpiry)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to generate download URL.")
		return
	}

	c.JSON(http.StatusOK, ArtifactURLResponse{URL: url})
}
