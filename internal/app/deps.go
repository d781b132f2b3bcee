package app

import (
	"time"

	"github.com/friendzone/backend/internal/auth"
	"github.com/friendzone/backend/internal/config"
	"github.com/friendzone/backend/internal/db"
	"github.com/friendzone/backend/internal/handlers"
	"github.com/friendzone/backend/internal/metrics"
	"github.com/friendzone/backend/internal/middleware"
	"github.com/friendzone/backend/internal/relationships"
	"github.com/friendzone/backend/internal/repositories"
)

// rateLimitTTL bounds how long an idle client's bucket is remembered.
const rateLimitTTL = 10 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, cfg config.Config, reg *metrics.Registry) handlers.Dependencies {
	sessionStore := repositories.NewPostgresSessionStore(pool)

	return handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      auth.NewManager(cfg.TokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore),
		Relationships: newRelationshipStore(pool),
		Limiter:       middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimitTTL),
		Metrics:       reg,
		Database:      pool,
	}
}

func newRelationshipStore(pool db.Pool) *relationships.Store {
	return relationships.NewStore(repositories.NewPostgresRelationshipRecords(pool))
}
