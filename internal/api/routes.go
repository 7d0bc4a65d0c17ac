package api

import (
	"alcyxob/wellness-portal/internal/domain" // Needed for RoleMiddleware
	"alcyxob/wellness-portal/internal/service"
	"alcyxob/wellness-portal/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	packetService service.PacketService,
	populationService service.PopulationService,
	fileStorage storage.FileStorage,
) {

	authHandler := NewAuthHandler(authService)
	packetHandler := NewPacketHandler(packetService, fileStorage)
	populationHandler := NewPopulationHandler(populationService)

	authMiddleware := AuthMiddleware(jwtSecret)
	staffOnly := RoleMiddleware(domain.RoleAdmin, domain.RoleSuperAdmin)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Population & Requirements Routes ---
		populationGroup := protected.Group("/populations")
		{
			// Classification is pure and read-only, but the results feed staff
			// workflows, so keep it behind the staff gate.
			populationGroup.POST("/classify", staffOnly, populationHandler.Classify)
			populationGroup.GET("/:population/requirements", populationHandler.GetRequirements)
		}

		// --- Client Routes ---
		clientGroup := protected.Group("/clients")
		{
			clientGroup.PUT("/:userId/population", staffOnly, populationHandler.AssignPopulation)
			// Requirements and packet listings authorize inside the service:
			// staff or the client themself.
			clientGroup.GET("/:userId/requirements", populationHandler.GetUserRequirements)
			clientGroup.GET("/:userId/packets", populationHandler.ListClientPackets)
		}

		// --- Packet Lifecycle Routes ---
		packetGroup := protected.Group("/packets")
		{
			packetGroup.POST("", staffOnly, packetHandler.CreatePacket)
			packetGroup.GET("/:packetId", packetHandler.GetPacket)

			// Content mutations (staff only; version-gated in the engine)
			packetGroup.PUT("/:packetId/content", staffOnly, packetHandler.UpdateContent)
			packetGroup.PATCH("/:packetId/exercise-parameter", staffOnly, packetHandler.UpdateExerciseParameter)
			packetGroup.PATCH("/:packetId/nutrition-item", staffOnly, packetHandler.UpdateNutritionItem)
			packetGroup.PATCH("/:packetId/coach-notes", staffOnly, packetHandler.AddCoachNotes)

			// Status transitions
			packetGroup.POST("/:packetId/publish", staffOnly, packetHandler.Publish)
			packetGroup.POST("/:packetId/unpublish", staffOnly, packetHandler.Unpublish)
			packetGroup.POST("/:packetId/archive", staffOnly, packetHandler.Archive)

			// Version history
			packetGroup.GET("/:packetId/versions", staffOnly, packetHandler.ListVersions)
			packetGroup.POST("/:packetId/versions/:version/restore", staffOnly, packetHandler.RestoreVersion)

			// Rendered artifact
			packetGroup.POST("/:packetId/artifact", staffOnly, packetHandler.RegenerateArtifact)
			packetGroup.GET("/:packetId/artifact-url", packetHandler.GetArtifactURL)
		}
	}
}
