package routes

import (
	"github.com/gin-gonic/gin"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/appdraft/appdraft-backend/pkg/api/handlers"
	"github.com/appdraft/appdraft-backend/pkg/api/servers"

	swaggerFiles "github.com/swaggo/files"
)

func SetupRoutes(server *servers.Server) {
	apiV1 := server.Router.Group("/api/v1")
	setupV1Routes(apiV1, server)

	server.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func setupV1Routes(router *gin.RouterGroup, server *servers.Server) {
	// Health routes
	setupHealthRoutes(router.Group("/health"))

	// Project publication routes
	projects := router.Group("/projects")
	setupProjectRoutes(projects, server)
}

func setupHealthRoutes(router *gin.RouterGroup) {
	handler := handlers.NewHealthHandler()
	router.GET("", handler.GetHealth)
}

func setupProjectRoutes(router *gin.RouterGroup, server *servers.Server) {
	publication := handlers.NewPublicationHandler(server)
	rollback := handlers.NewRollbackHandler(server)
	eventStream := handlers.NewEventsHandler(server)

	router.POST("/:id/publish", publication.Publish)
	router.POST("/:id/unpublish", publication.Unpublish)
	router.GET("/:id/versions", publication.ListVersions)
	router.DELETE("/:id/versions/:versionId", publication.DeleteVersion)
	router.POST("/:id/domains", publication.AddDomain)
	router.GET("/:id/domains", publication.ListDomains)
	router.GET("/:id/audit", publication.ListAudit)
	router.POST("/:id/rollback", rollback.Rollback)
	router.GET("/:id/events", eventStream.Stream)
}
