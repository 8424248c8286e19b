package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lsampedro/factumattic-console/internal/models"
)

// exportFieldsKey es el identificador fijo de la preferencia, por usuario
const exportFieldsKey = "exportFields"

// preferenceBackend son las operaciones de Redis que usa el repositorio
type preferenceBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ preferenceBackend = (*Redis)(nil)

// PreferenceRepository persiste la selección de columnas de exportación de
// cada usuario entre sesiones.
type PreferenceRepository struct {
	backend preferenceBackend
	logger  *logrus.Logger
}

// NewPreferenceRepository crea una nueva instancia del repositorio. Con
// redis nil el repositorio sirve siempre la selección por defecto.
func NewPreferenceRepository(redis *Redis, logger *logrus.Logger) *PreferenceRepository {
	r := &PreferenceRepository{logger: logger}
	if redis != nil {
		r.backend = redis
	}
	return r
}

func (r *PreferenceRepository) key(userID string) string {
	return exportFieldsKey + ":" + userID
}

// GetExportFields retorna la selección guardada del usuario. Una preferencia
// ausente o corrupta cae en silencio a la selección por defecto: nunca es un
// error visible para el usuario.
func (r *PreferenceRepository) GetExportFields(ctx context.Context, userID string) []models.ExportField {
	if r.backend == nil {
		return models.DefaultExportFields()
	}

	raw, err := r.backend.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.WithError(err).Warn("Error reading export field preference")
		}
		return models.DefaultExportFields()
	}

	fields, err := decodeExportFields([]byte(raw))
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("Corrupt export field preference, falling back to defaults")
	}

	return fields
}

// decodeExportFields decodifica la preferencia guardada. Un valor corrupto o
// vacío produce la selección por defecto, nunca un error visible.
func decodeExportFields(raw []byte) ([]models.ExportField, error) {
	var fields []models.ExportField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.DefaultExportFields(), err
	}
	if len(fields) == 0 {
		return models.DefaultExportFields(), nil
	}
	return fields, nil
}

// SetExportFields guarda la selección del usuario. Se escribe completa en
// cada cambio, sin expiración.
func (r *PreferenceRepository) SetExportFields(ctx context.Context, userID string, fields []models.ExportField) error {
	if r.backend == nil {
		return fmt.Errorf("preference storage not available")
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("error encoding export fields: %w", err)
	}

	if err := r.backend.Set(ctx, r.key(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("error saving export fields: %w", err)
	}

	return nil
}
