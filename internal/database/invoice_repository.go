package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lsampedro/factumattic-console/internal/models"
)

// ErrNotFound indica que el documento solicitado no existe en la colección
var ErrNotFound = errors.New("document not found")

// InvoiceRepository maneja las operaciones sobre la colección de facturas.
// Los documentos se leen y escriben como RawRecord: el tipado lo aplica el
// normalizador, nunca este repositorio.
type InvoiceRepository struct {
	client     *firestore.Client
	collection string
	logger     *logrus.Logger
}

// NewInvoiceRepository crea una nueva instancia del repositorio
func NewInvoiceRepository(client *firestore.Client, collection string, logger *logrus.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// ListByUser retorna todos los documentos cuyo userId coincide con el
// usuario de la sesión. El id asignado por el almacén se inyecta en cada
// registro bajo la clave "id".
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]models.RawRecord, error) {
	iter := r.client.Collection(r.collection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	var records []models.RawRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error querying invoices: %w", err)
		}

		record := doc.Data()
		record["id"] = doc.Ref.ID
		records = append(records, record)
	}

	return records, nil
}

// GetByID retorna un documento por su id o ErrNotFound si no existe
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (models.RawRecord, error) {
	doc, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting invoice %s: %w", id, err)
	}

	record := doc.Data()
	record["id"] = doc.Ref.ID
	return record, nil
}

// UpdateByID escribe el payload de actualización sobre un documento. Cada
// clave de nivel superior del payload reemplaza por completo su valor (el
// sub-mapa "data" incluido); los campos de nivel superior no presentes en
// el payload se conservan intactos.
func (r *InvoiceRepository) UpdateByID(ctx context.Context, id string, payload models.RawRecord) error {
	updates := make([]firestore.Update, 0, len(payload))

	// Orden determinista para que los logs y reintentos sean comparables
	keys := make([]string, 0, len(payload))
	for key := range payload {
		if key == "id" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		updates = append(updates, firestore.Update{Path: key, Value: payload[key]})
	}

	if _, err := r.client.Collection(r.collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("error updating invoice %s: %w", id, err)
	}

	return nil
}

// DeleteByID elimina un documento de forma definitiva. No hay borrado
// lógico ni versionado: la operación es irreversible.
func (r *InvoiceRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.client.Collection(r.collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("error deleting invoice %s: %w", id, err)
	}
	return nil
}
