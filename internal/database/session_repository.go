package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const revokedKeyPrefix = "revoked:"

// SessionRepository mantiene la lista de tokens de sesión revocados.
// El cierre de sesión revoca el token hasta su expiración natural; la
// emisión de tokens la hace el proveedor de identidad, no este servicio.
type SessionRepository struct {
	redis  *Redis
	logger *logrus.Logger
}

// NewSessionRepository crea una nueva instancia del repositorio
func NewSessionRepository(redis *Redis, logger *logrus.Logger) *SessionRepository {
	return &SessionRepository{
		redis:  redis,
		logger: logger,
	}
}

// Revoke marca un token como revocado durante el tiempo de vida restante
func (r *SessionRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r.redis == nil {
		return fmt.Errorf("session storage not available")
	}
	if ttl <= 0 {
		// El token ya expiró por sí solo
		return nil
	}

	if err := r.redis.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("error revoking session: %w", err)
	}
	return nil
}

// IsRevoked retorna true si el token fue revocado por un cierre de sesión
func (r *SessionRepository) IsRevoked(ctx context.Context, tokenID string) bool {
	if r.redis == nil {
		return false
	}

	count, err := r.redis.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		r.logger.WithError(err).Warn("Error checking session revocation")
		return false
	}
	return count > 0
}
