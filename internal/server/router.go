package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Travinkel/cortex-engine/internal/handlers"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/middleware"
	"github.com/Travinkel/cortex-engine/internal/observability"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	LearnerHandler *handlers.LearnerHandler
	GraphHandler   *handlers.GraphHandler
	ServiceName    string
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5174"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Trace-Id", "X-Request-Id"},
		AllowCredentials: true,
	}))

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "cortex-engine"
	}
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.AttachTraceContext())
	router.Use(middleware.RequestLogger(cfg.Log))
	router.Use(middleware.Metrics(cfg.Metrics))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		learners := api.Group("/learners/:learner_id")
		{
			learners.GET("/mastery", cfg.LearnerHandler.ListMastery)
			learners.GET("/concepts/:concept_id/mastery", cfg.LearnerHandler.GetMastery)
			learners.GET("/concepts/:concept_id/access", cfg.LearnerHandler.EvaluateAccess)
			learners.POST("/responses", cfg.LearnerHandler.RecordResponse)
			learners.GET("/responses", cfg.LearnerHandler.ListResponses)
			learners.GET("/waivers", cfg.LearnerHandler.ListWaivers)
			learners.POST("/path", cfg.LearnerHandler.BuildPath)
			learners.POST("/rank", cfg.LearnerHandler.RankCandidates)
		}

		graph := api.Group("/graph")
		{
			graph.POST("/edges", cfg.GraphHandler.AddEdge)
			graph.DELETE("/edges/:edge_id", cfg.GraphHandler.RevokeEdge)
			graph.POST("/edges/:edge_id/waivers", cfg.GraphHandler.GrantWaiver)
		}

		api.GET("/gaps", cfg.GraphHandler.ListGaps)
	}

	return router
}
