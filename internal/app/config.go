package app

import (
	"strings"

	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/utils"
)

type Config struct {
	Port         string
	MetricsAddr  string
	Environment  string
	Version      string
	ParamsPath   string
	AllowOrigins []string
}

func LoadConfig(log *logger.Logger) Config {
	origins := []string{}
	for _, o := range strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return Config{
		Port:         utils.GetEnv("PORT", "8080", log),
		MetricsAddr:  utils.GetEnv("METRICS_ADDR", "", log),
		Environment:  utils.GetEnv("APP_ENV", "development", log),
		Version:      utils.GetEnv("APP_VERSION", "dev", log),
		ParamsPath:   utils.GetEnv("ENGINE_PARAMS_PATH", "", log),
		AllowOrigins: origins,
	}
}
