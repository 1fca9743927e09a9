package app

import (
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Travinkel/cortex-engine/internal/clients/redis"
	"github.com/Travinkel/cortex-engine/internal/logger"
	"github.com/Travinkel/cortex-engine/internal/platform/neo4jdb"
)

type Clients struct {
	Sessions redis.SessionStore
	// RedisRaw is nil when the in-memory session store is active.
	RedisRaw goredis.UniversalClient
	// Neo4j is nil when no NEO4J_URI is configured; the graph mirror is then
	// a no-op.
	Neo4j *neo4jdb.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var (
		sessions redis.SessionStore
		raw      goredis.UniversalClient
	)
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		store, err := redis.NewSessionStore(log)
		if err != nil {
			return Clients{}, err
		}
		sessions = store
		if c, ok := store.(interface{ Client() goredis.UniversalClient }); ok {
			raw = c.Client()
		}
	} else {
		log.Warn("REDIS_ADDR not set, session state held in memory")
		sessions = redis.NewMemorySessionStore()
	}

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Clients{}, err
	}

	return Clients{
		Sessions: sessions,
		RedisRaw: raw,
		Neo4j:    neo,
	}, nil
}
