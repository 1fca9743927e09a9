package app

import (
	"github.com/gin-gonic/gin"

	"github.com/Travinkel/cortex-engine/internal/handlers"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/observability"
	"github.com/Travinkel/cortex-engine/internal/server"
)

type Handlers struct {
	Learner *handlers.LearnerHandler
	Graph   *handlers.GraphHandler
}

func wireHandlers(log *logger.Logger, engine Engine) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Learner: handlers.NewLearnerHandler(log, engine.Usecases),
		Graph:   handlers.NewGraphHandler(log, engine.Usecases),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		LearnerHandler: handlerset.Learner,
		GraphHandler:   handlerset.Graph,
		ServiceName:    "cortex-engine",
		AllowOrigins:   cfg.AllowOrigins,
	})
}
