package handlers

import (
	"net/http"

	"github.com/appdraft/appdraft-backend/pkg/api/dtos"
	"github.com/appdraft/appdraft-backend/pkg/api/servers"
	postgresRepositories "github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/repositories"
	redisInfra "github.com/appdraft/appdraft-backend/pkg/infrastructure/redis"
	"github.com/appdraft/appdraft-backend/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RollbackHandler struct {
	RollbackService *services.RollbackService
}

func NewRollbackHandler(server *servers.Server) *RollbackHandler {
	projectRepo := postgresRepositories.NewProjectPostgresRepository(server.PostgresDB)
	versionRepo := postgresRepositories.NewVersionPostgresRepository(server.PostgresDB)
	jobRepo := postgresRepositories.NewSyncJobPostgresRepository(server.PostgresDB)

	return &RollbackHandler{
		RollbackService: services.NewRollbackService(
			projectRepo,
			versionRepo,
			jobRepo,
			redisInfra.NewLocker(server.Redis),
			redisInfra.NewIdempotencyCache(server.Redis),
			server.Artifacts,
			server.Events,
			server.LockTTL,
		),
	}
}

// Rollback godoc
// @Summary      Roll back to an earlier version
// @Description  Creates a new unpublished version reusing the target's artifact and schedules the working directory sync. Publication remains a separate explicit step.
// @Tags         rollback
// @Accept       json
// @Produce      json
// @Param        id path string true "Project ID"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        request body dtos.RollbackRequest true "Rollback request"
// @Success      200 {object} services.RollbackResult
// @Router       /projects/{id}/rollback [post]
func (h *RollbackHandler) Rollback(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	var request dtos.RollbackRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.RollbackService.RollbackTo(
		c.Request.Context(),
		projectID,
		uuid.MustParse(request.TargetVersionID),
		userIDHeader(c),
		request.SkipWorkingDirectorySync,
		c.GetHeader("Idempotency-Key"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rollbackVersionId": result.RollbackVersionID,
		"previewUrl":        result.PreviewURL,
		"status":            result.Status,
		"publishInfo":       result.PublishInfo,
		"replayed":          result.Replayed,
	})
}
