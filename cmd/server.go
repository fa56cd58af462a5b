package cmd

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/imprevi/clipgen/config"
	"github.com/imprevi/clipgen/handlers"
	"github.com/imprevi/clipgen/logging"
	"github.com/imprevi/clipgen/media"
	"github.com/imprevi/clipgen/middleware"
	"github.com/imprevi/clipgen/services"
	"github.com/imprevi/clipgen/websocket"
)

// StartWebServer wires the pipeline and runs the HTTP API until the
// process exits.
func StartWebServer(cfg *config.Config) error {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	hub := websocket.NewHub()
	go hub.Run()

	engine, err := media.NewExecutor(logging.WithComponent("ffmpeg"))
	if err != nil {
		return err
	}

	// Remote submissions degrade to a clear error instead of refusing to
	// boot when yt-dlp is missing.
	downloader, err := services.NewYtDlpDownloader()
	if err != nil {
		log.Warn().Err(err).Msg("remote sources disabled")
		downloader = nil
	}

	registry := services.NewRegistry(cfg.JobsFile, hub)
	manager := services.NewManager(cfg, registry, engine, downloader)
	manager.Start()
	defer manager.Stop()

	sweeperStop := make(chan struct{})
	defer close(sweeperStop)
	go services.NewSweeper(cfg, registry).Start(sweeperStop)

	jobHandler := handlers.NewJobHandler(manager, hub, cfg)
	clipHandler := handlers.NewClipHandler(manager)
	healthHandler := handlers.NewHealthHandler(manager)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Security())
	r.MaxMultipartMemory = 32 << 20

	setupRoutes(r, jobHandler, clipHandler, healthHandler)

	log.Info().Int("port", cfg.Port).Msg("clipgen server starting")
	return r.Run(fmt.Sprintf(":%d", cfg.Port))
}

// setupRoutes configures all the HTTP routes.
func setupRoutes(r *gin.Engine, jobHandler *handlers.JobHandler, clipHandler *handlers.ClipHandler, healthHandler *handlers.HealthHandler) {
	r.GET("/health", healthHandler.HealthCheck)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)
		apiGroup.GET("/stats", healthHandler.Stats)

		jobsGroup := apiGroup.Group("/jobs")
		{
			jobsGroup.POST("/upload", jobHandler.UploadJob)
			jobsGroup.POST("/remote", jobHandler.RemoteJob)

			jobsGroup.GET("", jobHandler.ListJobs)
			jobsGroup.GET("/:jobId", jobHandler.GetJob)
			jobsGroup.POST("/:jobId/retry", jobHandler.RetryJob)
			jobsGroup.DELETE("/:jobId", jobHandler.DeleteJob)
		}

		// WebSocket endpoints for real-time progress.
		wsGroup := apiGroup.Group("/ws")
		{
			wsGroup.GET("/jobs/:jobId", jobHandler.JobProgressSocket)
			wsGroup.GET("/jobs", jobHandler.AllJobsSocket)
		}

		apiGroup.GET("/clips/:clipId", clipHandler.DownloadClip)
	}
}
