package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lsampedro/factumattic-console/internal/database"
	"github.com/lsampedro/factumattic-console/internal/models"
)

// ErrInvoiceNotFound indica que el id solicitado no tiene documento
var ErrInvoiceNotFound = errors.New("invoice not found")

// DocumentStore es el colaborador de almacenamiento de documentos. La única
// consulta que usa la consola es "el usuario propietario es el de la sesión".
type DocumentStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.RawRecord, error)
	GetByID(ctx context.Context, id string) (models.RawRecord, error)
	UpdateByID(ctx context.Context, id string, payload models.RawRecord) error
	DeleteByID(ctx context.Context, id string) error
}

var _ DocumentStore = (*database.InvoiceRepository)(nil)

// DocumentSigner firma URLs de descarga para los documentos fuente
type DocumentSigner interface {
	PresignedURL(ctx context.Context, fileID string) (string, error)
}

// DocumentFetcher descarga los bytes del documento fuente desde el bucket.
// El cliente de almacenamiento implementa el firmado y la descarga; sin él
// solo queda la redirección al origen público.
type DocumentFetcher interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

var _ DocumentFetcher = (*database.FileStorage)(nil)

// ErrDocumentUnavailable indica que no hay cliente de almacenamiento con el
// que descargar el documento fuente
var ErrDocumentUnavailable = errors.New("document storage not available")

// InvoiceService orquesta el listado, búsqueda, detalle, edición, borrado y
// exportación de facturas sobre el almacén de documentos.
type InvoiceService struct {
	store        DocumentStore
	signer       DocumentSigner
	normalizer   *Normalizer
	composer     *Composer
	exporter     *Exporter
	bucketOrigin string
	logger       *logrus.Logger
}

// NewInvoiceService crea una nueva instancia del servicio. signer puede ser
// nil: sin credenciales de almacenamiento las URLs de documento se
// construyen sobre el origen público del bucket.
func NewInvoiceService(store DocumentStore, signer DocumentSigner, bucketOrigin string, logger *logrus.Logger) *InvoiceService {
	return &InvoiceService{
		store:        store,
		signer:       signer,
		normalizer:   NewNormalizer(),
		composer:     NewComposer(),
		exporter:     NewExporter(),
		bucketOrigin: strings.TrimSuffix(bucketOrigin, "/"),
		logger:       logger,
	}
}

// ListInvoices retorna las facturas del usuario normalizadas y ordenadas por
// instante de creación descendente, con las de instante ausente al final.
func (s *InvoiceService) ListInvoices(ctx context.Context, userID string) ([]models.Invoice, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}

	invoices := make([]models.Invoice, 0, len(records))
	for _, record := range records {
		invoices = append(invoices, s.normalizer.Normalize(record))
	}

	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i].CreatedAt, invoices[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return invoices, nil
}

// SearchInvoices filtra el listado en memoria con los términos de búsqueda
// de la consola: emisora por subcadena sin distinguir mayúsculas, importe y
// fecha por subcadena literal y solo cuando el término no está vacío.
func (s *InvoiceService) SearchInvoices(invoices []models.Invoice, terms models.SearchTerms) []models.Invoice {
	if terms.IsZero() {
		return invoices
	}

	filtered := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !strings.Contains(strings.ToLower(inv.NombreEmpresaEmisora), strings.ToLower(terms.Empresa)) {
			continue
		}
		if terms.Importe != "" && !strings.Contains(inv.TotalAPagar, terms.Importe) {
			continue
		}
		if terms.Fecha != "" && !strings.Contains(inv.Fecha, terms.Fecha) {
			continue
		}
		filtered = append(filtered, inv)
	}
	return filtered
}

// GetInvoice retorna la factura normalizada para la vista de detalle
func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (models.Invoice, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Invoice{}, ErrInvoiceNotFound
		}
		return models.Invoice{}, fmt.Errorf("error getting invoice: %w", err)
	}

	return s.normalizer.NormalizeDetail(record), nil
}

// UpdateInvoice compone el payload de escritura a partir de la edición y del
// original y lo persiste. Si la escritura falla, el estado mostrado no
// cambia: el error se propaga y el buffer de edición lo conserva el cliente.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id string, edited *models.Invoice) (models.Invoice, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Invoice{}, ErrInvoiceNotFound
		}
		return models.Invoice{}, fmt.Errorf("error reading invoice before update: %w", err)
	}

	original := s.normalizer.NormalizeDetail(record)
	payload := s.composer.ComposeUpdate(edited, &original)

	if err := s.store.UpdateByID(ctx, id, payload); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Invoice{}, ErrInvoiceNotFound
		}
		return models.Invoice{}, fmt.Errorf("error updating invoice: %w", err)
	}

	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("error reading invoice after update: %w", err)
	}

	return s.normalizer.NormalizeDetail(updated), nil
}

// DeleteInvoice elimina la factura de forma definitiva
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("error deleting invoice: %w", err)
	}
	return nil
}

// DocumentURL construye la URL pública del documento fuente a partir del
// origen fijo del bucket y el file_id. Este servicio solo compone la URL,
// no gestiona el almacenamiento.
func (s *InvoiceService) DocumentURL(inv *models.Invoice) string {
	if inv.FileID == "" {
		return ""
	}
	return s.bucketOrigin + "/" + inv.FileID
}

// ResolveDocumentURL retorna la URL de descarga del documento: firmada si
// hay credenciales de almacenamiento, pública si no.
func (s *InvoiceService) ResolveDocumentURL(ctx context.Context, inv *models.Invoice) (string, error) {
	if inv.FileID == "" {
		return "", ErrInvoiceNotFound
	}

	if s.signer != nil {
		url, err := s.signer.PresignedURL(ctx, inv.FileID)
		if err == nil {
			return url, nil
		}
		s.logger.WithError(err).WithField("file_id", inv.FileID).Warn("Error presigning document, falling back to public URL")
	}

	return s.DocumentURL(inv), nil
}

// DownloadDocument descarga los bytes del documento fuente para servirlo
// como adjunto. Requiere un cliente de almacenamiento con credenciales; sin
// él retorna ErrDocumentUnavailable y el que llama decide la alternativa.
func (s *InvoiceService) DownloadDocument(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	if inv.FileID == "" {
		return nil, ErrInvoiceNotFound
	}

	fetcher, ok := s.signer.(DocumentFetcher)
	if !ok {
		return nil, ErrDocumentUnavailable
	}

	data, err := fetcher.DownloadFile(ctx, inv.FileID)
	if err != nil {
		return nil, fmt.Errorf("error downloading document %s: %w", inv.FileID, err)
	}

	return data, nil
}

// Export lista las facturas del usuario, aplica el rango de fechas y la
// selección de columnas y retorna los bytes del archivo con su nombre de
// descarga.
func (s *InvoiceService) Export(ctx context.Context, userID string, fields []models.ExportField, dateRange *DateRange, format Format) ([]byte, string, error) {
	invoices, err := s.ListInvoices(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.exporter.BuildExport(invoices, fields, dateRange, format)
	if err != nil {
		return nil, "", err
	}

	return data, s.exporter.ExportFilename(format), nil
}
