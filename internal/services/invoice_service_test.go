package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsampedro/factumattic-console/internal/database"
	"github.com/lsampedro/factumattic-console/internal/models"
)

// fakeStore implementa DocumentStore en memoria para las pruebas
type fakeStore struct {
	records map[string]models.RawRecord

	listErr   error
	getErr    error
	updateErr error
	deleteErr error

	lastUpdateID      string
	lastUpdatePayload models.RawRecord
}

var _ DocumentStore = (*fakeStore)(nil)

func newFakeStore(records ...models.RawRecord) *fakeStore {
	s := &fakeStore{records: make(map[string]models.RawRecord)}
	for _, record := range records {
		s.records[record["id"].(string)] = record
	}
	return s
}

func (s *fakeStore) ListByUser(_ context.Context, userID string) ([]models.RawRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.RawRecord
	for _, record := range s.records {
		if record["userId"] == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (models.RawRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	record, ok := s.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return record, nil
}

func (s *fakeStore) UpdateByID(_ context.Context, id string, payload models.RawRecord) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	record, ok := s.records[id]
	if !ok {
		return database.ErrNotFound
	}
	s.lastUpdateID = id
	s.lastUpdatePayload = payload
	for key, value := range payload {
		record[key] = value
	}
	return nil
}

func (s *fakeStore) DeleteByID(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, id)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestService(store DocumentStore) *InvoiceService {
	return NewInvoiceService(store, nil, "https://factumattic.s3.eu-north-1.amazonaws.com", testLogger())
}

func record(id, userID string, createdAt *time.Time, fields map[string]interface{}) models.RawRecord {
	r := models.RawRecord{"id": id, "userId": userID, "data": fields}
	if createdAt != nil {
		r["createdAt"] = *createdAt
	}
	return r
}

func TestListInvoices_OnlyOwnerAndSortedByCreationDesc(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	store := newFakeStore(
		record("a", "u1", &older, map[string]interface{}{"Nombre Empresa Emisora": "Vieja"}),
		record("b", "u1", &newer, map[string]interface{}{"Nombre Empresa Emisora": "Nueva"}),
		record("c", "u1", nil, map[string]interface{}{"Nombre Empresa Emisora": "SinFecha"}),
		record("d", "u2", &newer, map[string]interface{}{"Nombre Empresa Emisora": "Ajena"}),
	)
	s := newTestService(store)

	invoices, err := s.ListInvoices(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, invoices, 3)
	assert.Equal(t, "Nueva", invoices[0].NombreEmpresaEmisora)
	assert.Equal(t, "Vieja", invoices[1].NombreEmpresaEmisora)
	assert.Equal(t, "SinFecha", invoices[2].NombreEmpresaEmisora)
}

func TestSearchInvoices(t *testing.T) {
	s := newTestService(newFakeStore())

	invoices := []models.Invoice{
		{NombreEmpresaEmisora: "Acme Soluciones", TotalAPagar: "121,00", Fecha: "01.01.2024"},
		{NombreEmpresaEmisora: "Beta", TotalAPagar: "50,00", Fecha: "15.02.2024"},
	}

	t.Run("sin términos retorna todo", func(t *testing.T) {
		assert.Len(t, s.SearchInvoices(invoices, models.SearchTerms{}), 2)
	})

	t.Run("emisora sin distinguir mayúsculas", func(t *testing.T) {
		got := s.SearchInvoices(invoices, models.SearchTerms{Empresa: "acme"})
		require.Len(t, got, 1)
		assert.Equal(t, "Acme Soluciones", got[0].NombreEmpresaEmisora)
	})

	t.Run("importe por subcadena", func(t *testing.T) {
		got := s.SearchInvoices(invoices, models.SearchTerms{Importe: "121"})
		require.Len(t, got, 1)
		assert.Equal(t, "121,00", got[0].TotalAPagar)
	})

	t.Run("fecha por subcadena", func(t *testing.T) {
		got := s.SearchInvoices(invoices, models.SearchTerms{Fecha: "02.2024"})
		require.Len(t, got, 1)
		assert.Equal(t, "Beta", got[0].NombreEmpresaEmisora)
	})

	t.Run("términos combinados", func(t *testing.T) {
		got := s.SearchInvoices(invoices, models.SearchTerms{Empresa: "beta", Importe: "121"})
		assert.Empty(t, got)
	})
}

func TestGetInvoice_NotFound(t *testing.T) {
	s := newTestService(newFakeStore())

	_, err := s.GetInvoice(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestUpdateInvoice_PreservesIdentityAndUntouchedFields(t *testing.T) {
	createdAt := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	store := newFakeStore(record("abc", "owner", &createdAt, map[string]interface{}{
		"Fecha":                  "01.01.2024",
		"Nombre Empresa Emisora": "Acme",
		"file_id":                "docs/acme.pdf",
		"campo_futuro":           "valor",
	}))
	s := newTestService(store)

	edited := &models.Invoice{
		UserID:               "attacker",
		Fecha:                "02.01.2024",
		NombreEmpresaEmisora: "Acme Renombrada",
		TotalAPagar:          "200,00",
	}

	updated, err := s.UpdateInvoice(context.Background(), "abc", edited)
	require.NoError(t, err)

	assert.Equal(t, "abc", store.lastUpdateID)
	assert.Equal(t, "owner", store.lastUpdatePayload["userId"])
	assert.Equal(t, createdAt, store.lastUpdatePayload["date"])

	data := store.lastUpdatePayload["data"].(models.RawRecord)
	assert.Equal(t, "02.01.2024", data["Fecha"])
	assert.Equal(t, "docs/acme.pdf", data["file_id"])
	assert.Equal(t, "valor", data["campo_futuro"])

	assert.Equal(t, "Acme Renombrada", updated.NombreEmpresaEmisora)
	assert.Equal(t, "owner", updated.UserID)
}

func TestUpdateInvoice_NotFound(t *testing.T) {
	s := newTestService(newFakeStore())

	_, err := s.UpdateInvoice(context.Background(), "missing", &models.Invoice{})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestUpdateInvoice_StoreFailureLeavesStateUntouched(t *testing.T) {
	store := newFakeStore(record("abc", "owner", nil, map[string]interface{}{
		"Nombre Empresa Emisora": "Acme",
	}))
	store.updateErr = errors.New("network down")
	s := newTestService(store)

	_, err := s.UpdateInvoice(context.Background(), "abc", &models.Invoice{NombreEmpresaEmisora: "Otra"})
	require.Error(t, err)

	// El documento conserva su estado anterior
	current, getErr := s.GetInvoice(context.Background(), "abc")
	require.NoError(t, getErr)
	assert.Equal(t, "Acme", current.NombreEmpresaEmisora)
}

func TestDeleteInvoice_RemovesExactlyThatID(t *testing.T) {
	store := newFakeStore(
		record("a", "u1", nil, map[string]interface{}{}),
		record("b", "u1", nil, map[string]interface{}{}),
	)
	s := newTestService(store)

	require.NoError(t, s.DeleteInvoice(context.Background(), "a"))

	invoices, err := s.ListInvoices(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "b", invoices[0].ID)
}

func TestDocumentURL(t *testing.T) {
	s := newTestService(newFakeStore())

	url := s.DocumentURL(&models.Invoice{FileID: "docs/acme.pdf"})
	assert.Equal(t, "https://factumattic.s3.eu-north-1.amazonaws.com/docs/acme.pdf", url)

	assert.Empty(t, s.DocumentURL(&models.Invoice{}))
}

func TestResolveDocumentURL_FallsBackToPublicOrigin(t *testing.T) {
	s := newTestService(newFakeStore())

	url, err := s.ResolveDocumentURL(context.Background(), &models.Invoice{FileID: "docs/acme.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "https://factumattic.s3.eu-north-1.amazonaws.com/docs/acme.pdf", url)

	_, err = s.ResolveDocumentURL(context.Background(), &models.Invoice{})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestDownloadDocument_ErrorsWithoutStorageOrFileID(t *testing.T) {
	s := newTestService(newFakeStore())

	t.Run("sin cliente de almacenamiento", func(t *testing.T) {
		_, err := s.DownloadDocument(context.Background(), &models.Invoice{FileID: "docs/a.pdf"})
		assert.ErrorIs(t, err, ErrDocumentUnavailable)
	})

	t.Run("sin documento fuente", func(t *testing.T) {
		_, err := s.DownloadDocument(context.Background(), &models.Invoice{})
		assert.ErrorIs(t, err, ErrInvoiceNotFound)
	})
}

func TestExport_EndToEnd(t *testing.T) {
	store := newFakeStore(
		record("a", "u1", nil, map[string]interface{}{
			"Fecha":                  "01.01.2024",
			"Nombre Empresa Emisora": "Acme",
		}),
	)
	s := newTestService(store)

	fields := []models.ExportField{
		{Key: "Fecha", Label: "Fecha", Checked: true},
		{Key: "Nombre Empresa Emisora", Label: "Empresa Emisora", Checked: true},
	}

	data, filename, err := s.Export(context.Background(), "u1", fields, nil, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "\"Fecha\",\"Empresa Emisora\"\n\"01.01.2024\",\"Acme\"", string(data))
	assert.Contains(t, filename, "facturas_")
	assert.Contains(t, filename, ".csv")
}
