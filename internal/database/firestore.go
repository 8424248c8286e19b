package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/lsampedro/factumattic-console/internal/config"
)

// NewFirestoreClient crea un cliente de Firestore para el proyecto configurado.
// Centraliza la creación del cliente para todos los repositorios.
func NewFirestoreClient(ctx context.Context, cfg *config.FirestoreConfig) (*firestore.Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project ID must be provided")
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("error creating Firestore client: %w", err)
	}

	return client, nil
}
