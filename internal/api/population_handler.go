// internal/api/population_handler.go
package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PopulationHandler struct {
	populationService service.PopulationService
}

func NewPopulationHandler(populationService service.PopulationService) *PopulationHandler {
	return &PopulationHandler{populationService: populationService}
}

// --- DTOs ---

type ClassifyRequest struct {
	Facts domain.ClassificationFacts `json:"facts"`
}

type ClassifyResponse struct {
	Population domain.Population `json:"population"`
}

type AssignPopulationRequest struct {
	Population domain.Population `json:"population" binding:"required"`
}

type RequirementsResponse struct {
	Population domain.Population             `json:"population"`
	Required   []domain.AssessmentType       `json:"required"`
	Optional   []domain.AssessmentType       `json:"optional"`
	All        []domain.AssessmentType       `json:"all"`
	Membership map[domain.AssessmentType]bool `json:"requiredByType,omitempty"`
}

func respondPopulationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotAClient), errors.Is(err, service.ErrInvalidPopulation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnclassified):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// --- Handler Methods ---

// Classify godoc
// @Summary Classify intake facts into a population
// @Description Pure classification; does not persist anything.
// @Tags Populations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param facts body ClassifyRequest true "Discovery intake facts"
// @Success 200 {object} ClassifyResponse
// @Router /populations/classify [post]
func (h *PopulationHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, ClassifyResponse{
		Population: h.populationService.ClassifyIntake(req.Facts),
	})
}

// AssignPopulation godoc
// @Summary Assign a population tag to a client
// @Tags Populations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Client user ID"
// @Param body body AssignPopulationRequest true "Population tag"
// @Success 200 {object} UserResponse
// @Failure 400 {object} gin.H "Invalid population or not a client"
// @Failure 404 {object} gin.H "User not found"
// @Router /clients/{userId}/population [put]
func (h *PopulationHandler) AssignPopulation(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format.")
		return
	}
	var req AssignPopulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := h.populationService.AssignPopulation(c.Request.Context(), actorID, userID, req.Population)
	if err != nil {
		respondPopulationError(c, err)
		return
	}

	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// GetRequirements godoc
// @Summary Get the assessment requirements for a population
// @Description Static configuration lookup; no persistence involved.
// @Tags Populations
// @Produce json
// @Security BearerAuth
// @Param population path string true "Population tag"
// @Success 200 {object} RequirementsResponse
// @Failure 400 {object} gin.H "Unknown population"
// @Router /populations/{population}/requirements [get]
func (h *PopulationHandler) GetRequirements(c *gin.Context) {
	population := domain.Population(c.Param("population"))
	if !population.IsValid() {
		abortWithError(c, http.StatusBadRequest, "Unknown population tag.")
		return
	}

	reqs := domain.RequirementsFor(population)
	c.JSON(http.StatusOK, RequirementsResponse{
		Population: population,
		Required:   reqs.Required,
		Optional:   reqs.Optional,
		All:        domain.AllTypesFor(population),
	})
}

// GetUserRequirements godoc
// @Summary Get the assessment requirements for a client's assigned population
// @Tags Populations
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Client user ID"
// @Success 200 {object} domain.AssessmentRequirements
// @Failure 409 {object} gin.H "Client not classified yet"
// @Router /clients/{userId}/requirements [get]
func (h *PopulationHandler) GetUserRequirements(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format.")
		return
	}

	reqs, err := h.populationService.RequirementsForUser(c.Request.Context(), actorID, userID)
	if err != nil {
		respondPopulationError(c, err)
		return
	}

	c.JSON(http.StatusOK, reqs)
}

// ListClientPackets godoc
// @Summary List a client's packets
// @Description Staff see all of the client's packets; the client sees only published ones. Served through the listing cache.
// @Tags Packets
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Client user ID"
// @Success 200 {array} PacketResponse
// @Router /clients/{userId}/packets [get]
func (h *PopulationHandler) ListClientPackets(c *gin.Context) {
	actorID, err := getActorIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format.")
		return
	}

	packets, err := h.populationService.ListClientPackets(c.Request.Context(), actorID, userID)
	if err != nil {
		respondPopulationError(c, err)
		return
	}

	responses := make([]PacketResponse, len(packets))
	for i := range packets {
		responses[i] = mapPacketToResponse(&packets[i])
	}
	c.JSON(http.StatusOK, responses)
}
