package servers

import (
	"time"

	"github.com/appdraft/appdraft-backend/pkg/events"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/artifact"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/hosting"
	redisInfra "github.com/appdraft/appdraft-backend/pkg/infrastructure/redis"
	"github.com/appdraft/appdraft-backend/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	Router      *gin.Engine
	PostgresDB  *gorm.DB
	Redis       *redisInfra.Client
	Artifacts   *artifact.Store
	Hosting     *hosting.Client
	Events      *events.Hub
	TaskManager *taskmanager.TaskManager
	LockTTL     time.Duration
}

func (s *Server) Start(port string) error {
	return s.Router.Run(":" + port)
}

func (s *Server) Use(middleware gin.HandlerFunc) {
	s.Router.Use(middleware)
}

func NewServer(
	db *gorm.DB,
	redisClient *redisInfra.Client,
	artifacts *artifact.Store,
	hostingClient *hosting.Client,
	eventHub *events.Hub,
	taskManager *taskmanager.TaskManager,
) *Server {
	app := gin.Default()

	return &Server{
		Router:      app,
		PostgresDB:  db,
		Redis:       redisClient,
		Artifacts:   artifacts,
		Hosting:     hostingClient,
		Events:      eventHub,
		TaskManager: taskManager,
	}
}
