package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/api/routes"
	"github.com/appdraft/appdraft-backend/pkg/api/servers"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/events"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/artifact"
	gitInfra "github.com/appdraft/appdraft-backend/pkg/infrastructure/git"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/hosting"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/connection"
	postgresRepositories "github.com/appdraft/appdraft-backend/pkg/infrastructure/postgres/repositories"
	redisInfra "github.com/appdraft/appdraft-backend/pkg/infrastructure/redis"
	"github.com/appdraft/appdraft-backend/pkg/services"
	"github.com/appdraft/appdraft-backend/pkg/taskmanager"

	"github.com/gin-contrib/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @title           Appdraft Deploy Backend
// @version         1.0
// @description     Version publication and rollback orchestration API

// @BasePath  /api/v1
func main() {

	logger.Init()

	// Load .env file if it exists (optional for Docker runtime)
	if err := godotenv.Load(".env"); err != nil {
		logger.Infof("No .env file found, using environment variables: %s", err)
	}

	port := getenv("PORT", "8000")

	postgresDB, err := connection.Init(
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"),
		os.Getenv("POSTGRES_PORT"),
	)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}

	redisDB, _ := strconv.Atoi(getenv("REDIS_DB", "0"))
	redisClient, err := redisInfra.NewClient(
		getenv("REDIS_ADDR", "localhost:6379"),
		os.Getenv("REDIS_PASSWORD"),
		redisDB,
	)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}

	artifactStore, err := artifact.NewStore(getenv("ARTIFACT_ROOT", "storage/artifacts"))
	if err != nil {
		logger.Fatal("Failed to open artifact store", zap.Error(err))
	}

	hostingClient := hosting.NewClient(getenv("HOSTING_API_URL", "http://localhost:9000"))
	eventHub := events.NewHub()
	workspaceRoot := getenv("WORKSPACE_ROOT", "storage/workspaces")

	lockTTLSeconds, _ := strconv.Atoi(getenv("LOCK_TTL_SECONDS", "330"))
	lockTTL := time.Duration(lockTTLSeconds) * time.Second

	// Shared worker pool for build and rollback-sync jobs, fed by the
	// durable queue.
	pool := taskmanager.NewTaskManager(5, 20)
	pool.Start()

	projectRepo := postgresRepositories.NewProjectPostgresRepository(postgresDB)
	versionRepo := postgresRepositories.NewVersionPostgresRepository(postgresDB)
	markerRepo := postgresRepositories.NewMarkerPostgresRepository(postgresDB)
	auditRepo := postgresRepositories.NewAuditPostgresRepository(postgresDB)
	jobRepo := postgresRepositories.NewSyncJobPostgresRepository(postgresDB)

	syncService := services.NewSyncService(
		projectRepo,
		versionRepo,
		markerRepo,
		auditRepo,
		artifactStore,
		gitInfra.NewRunner(),
		eventHub,
		workspaceRoot,
	)

	dispatcher := taskmanager.NewDispatcher(jobRepo, pool, lockTTL)
	dispatcher.Register(entities.JobTypeRollbackSync, syncService.Handle)
	dispatcher.Start()
	defer dispatcher.Stop()

	gcService := services.NewGCService(artifactStore, versionRepo, services.DefaultRetentionWindow)
	gcService.Start(6 * time.Hour)
	defer gcService.Stop()

	server := servers.NewServer(
		postgresDB,
		redisClient,
		artifactStore,
		hostingClient,
		eventHub,
		pool,
	)
	server.LockTTL = lockTTL

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"*"}
	server.Use(cors.New(config))

	routes.SetupRoutes(server)

	err = server.Start(port)
	if err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		log.Fatal(err)
	}
}

func getenv(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
