package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/appdraft/appdraft-backend/pkg/api/dtos"
	"github.com/appdraft/appdraft-backend/pkg/api/servers"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	postgresRepositories "github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/repositories"
	redisInfra "github.com/appdraft/appdraft-backend/pkg/infrastructure/redis"
	"github.com/appdraft/appdraft-backend/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PublicationHandler struct {
	PublicationService *services.PublicationService
	AuditRepo          *postgresRepositories.AuditPostgresRepository
}

func NewPublicationHandler(server *servers.Server) *PublicationHandler {
	projectRepo := postgresRepositories.NewProjectPostgresRepository(server.PostgresDB)
	versionRepo := postgresRepositories.NewVersionPostgresRepository(server.PostgresDB)
	domainRepo := postgresRepositories.NewDomainPostgresRepository(server.PostgresDB)

	return &PublicationHandler{
		AuditRepo: postgresRepositories.NewAuditPostgresRepository(server.PostgresDB),
		PublicationService: services.NewPublicationService(
			projectRepo,
			versionRepo,
			domainRepo,
			redisInfra.NewLocker(server.Redis),
			redisInfra.NewIdempotencyCache(server.Redis),
			server.Hosting,
			server.Artifacts,
			server.Events,
			server.TaskManager,
		),
	}
}

// statusForError maps the error taxonomy to HTTP codes.
func statusForError(err error) int {
	switch entities.KindOf(err) {
	case entities.ErrKindValidation:
		return http.StatusBadRequest
	case entities.ErrKindConflict:
		return http.StatusConflict
	case entities.ErrKindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	body := gin.H{"error": err.Error(), "kind": string(entities.KindOf(err))}
	if errors.Is(err, entities.ErrProjectLocked) {
		body["retryAfterSeconds"] = 5
	}
	c.JSON(status, body)
}

func projectIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// userIDHeader extracts the acting user. Authentication itself lives in
// front of this service.
func userIDHeader(c *gin.Context) uuid.UUID {
	id, err := uuid.Parse(c.GetHeader("X-User-Id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Publish godoc
// @Summary      Publish a version
// @Tags         publication
// @Accept       json
// @Produce      json
// @Param        id path string true "Project ID"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        request body dtos.PublishRequest true "Publish request"
// @Success      200 {object} services.PublishResult
// @Success      202 {object} services.PublishResult
// @Router       /projects/{id}/publish [post]
func (h *PublicationHandler) Publish(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	var request dtos.PublishRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.PublicationService.Publish(
		c.Request.Context(),
		projectID,
		uuid.MustParse(request.VersionID),
		userIDHeader(c),
		c.GetHeader("Idempotency-Key"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Pending && !result.Replayed {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"publishedVersion":    dtos.NewVersionResponse(result.PublishedVersion),
		"previouslyPublished": previouslyPublished(result),
		"domains":             result.Domains,
		"pending":             result.Pending,
		"replayed":            result.Replayed,
	})
}

func previouslyPublished(result *services.PublishResult) interface{} {
	if result.PreviouslyPublished == nil {
		return nil
	}
	response := dtos.NewVersionResponse(result.PreviouslyPublished)
	return response
}

// Unpublish godoc
// @Summary      Unpublish the live version
// @Tags         publication
// @Produce      json
// @Param        id path string true "Project ID"
// @Success      200 {object} map[string]bool
// @Router       /projects/{id}/unpublish [post]
func (h *PublicationHandler) Unpublish(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	if err := h.PublicationService.Unpublish(c.Request.Context(), projectID, userIDHeader(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": false})
}

// ListVersions godoc
// @Summary      List project versions
// @Tags         publication
// @Produce      json
// @Param        id path string true "Project ID"
// @Param        state query string false "published|unpublished|all"
// @Param        limit query int false "Page size, max 100"
// @Param        offset query int false "Page offset"
// @Success      200 {object} map[string]interface{}
// @Router       /projects/{id}/versions [get]
func (h *PublicationHandler) ListVersions(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	versions, err := h.PublicationService.ListVersions(
		projectID, c.DefaultQuery("state", "all"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dtos.NewVersionResponses(versions)})
}

// DeleteVersion godoc
// @Summary      Soft-delete a version
// @Tags         publication
// @Produce      json
// @Param        id path string true "Project ID"
// @Param        versionId path string true "Version ID"
// @Success      200 {object} map[string]bool
// @Router       /projects/{id}/versions/{versionId} [delete]
func (h *PublicationHandler) DeleteVersion(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	versionID, err := uuid.Parse(c.Param("versionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "versionId must be a UUID"})
		return
	}
	if err := h.PublicationService.DeleteVersion(
		c.Request.Context(), projectID, versionID, userIDHeader(c),
	); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// AddDomain godoc
// @Summary      Attach a domain to the project
// @Tags         domains
// @Accept       json
// @Produce      json
// @Param        id path string true "Project ID"
// @Param        request body dtos.AddDomainRequest true "Domain request"
// @Success      200 {object} entities.PublishedDomainEntity
// @Router       /projects/{id}/domains [post]
func (h *PublicationHandler) AddDomain(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	var request dtos.AddDomainRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		respondError(c, err)
		return
	}

	domain, err := h.PublicationService.AddDomain(
		c.Request.Context(),
		projectID,
		request.DomainName,
		entities.DomainType(request.DomainType),
		request.IsPrimary,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain})
}

// ListAudit godoc
// @Summary      List sync audit entries for the project
// @Tags         audit
// @Produce      json
// @Param        id path string true "Project ID"
// @Param        limit query int false "Page size, max 100"
// @Success      200 {object} map[string]interface{}
// @Router       /projects/{id}/audit [get]
func (h *PublicationHandler) ListAudit(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	entries, err := h.AuditRepo.ListEntries(projectID.String(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ListDomains godoc
// @Summary      List project domains
// @Tags         domains
// @Produce      json
// @Param        id path string true "Project ID"
// @Success      200 {object} map[string]interface{}
// @Router       /projects/{id}/domains [get]
func (h *PublicationHandler) ListDomains(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	domains, err := h.PublicationService.ListDomains(projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}
