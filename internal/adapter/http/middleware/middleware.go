package middleware

import (
	"github.com/nomadcore/triphail/pkg/logger"
)

// Middleware holds the shared dependencies every HTTP middleware needs.
// Authentication is local JWT verification only — this service never issues
// tokens, so there is no user repository or token store here, just the
// shared signing secret.
type Middleware struct {
	accessSecret string
	log          logger.Logger
}

func NewMiddleware(accessSecret string, log logger.Logger) *Middleware {
	return &Middleware{
		accessSecret: accessSecret,
		log:          log,
	}
}
