package history

import (
	"context"
	"fmt"

	"github.com/liurenke/renkebot/internal/apperr"
	"github.com/liurenke/renkebot/internal/config"
)

// NewStore builds the history store backend selected for the resolved
// endpoint.
func NewStore(ctx context.Context, backend string, ep config.Endpoint) (Store, error) {
	switch backend {
	case "redis":
		return NewRedisStore(ep.Addr(), ep.DB, ep.TTL), nil
	case "postgres":
		dsn := ep.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("postgres://%s/renkebot", ep.Addr())
		}
		return NewPostgresStore(ctx, dsn, ep.TTL)
	case "memory":
		return NewInMemoryStore(ep.TTL), nil
	default:
		return nil, apperr.Configuration("unknown history store backend %q", backend)
	}
}
