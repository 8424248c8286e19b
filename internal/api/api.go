package api

import (
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lsampedro/factumattic-console/internal/database"
	"github.com/lsampedro/factumattic-console/internal/models"
	"github.com/lsampedro/factumattic-console/internal/services"
)

// dateLayout es el patrón con el que llegan los límites del rango de
// exportación, el mismo día.mes.año del campo "Fecha".
const dateLayout = "02.01.2006"

// API maneja todos los endpoints de la consola
type API struct {
	invoiceService *services.InvoiceService
	prefRepo       *database.PreferenceRepository
	sessionRepo    *database.SessionRepository
	jwtSecret      string
	logger         *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(
	invoiceService *services.InvoiceService,
	prefRepo *database.PreferenceRepository,
	sessionRepo *database.SessionRepository,
	jwtSecret string,
	logger *logrus.Logger,
) *API {
	return &API{
		invoiceService: invoiceService,
		prefRepo:       prefRepo,
		sessionRepo:    sessionRepo,
		jwtSecret:      jwtSecret,
		logger:         logger,
	}
}

// ExportRequest representa la petición de exportación
type ExportRequest struct {
	Format    string               `json:"format"`
	Fields    []models.ExportField `json:"fields"`
	StartDate string               `json:"start_date"`
	EndDate   string               `json:"end_date"`
}

// ListInvoices lista las facturas del usuario, con búsqueda opcional por
// empresa emisora, importe y fecha.
func (api *API) ListInvoices(c *gin.Context) {
	userID := c.GetString("userID")

	var terms models.SearchTerms
	if err := c.ShouldBindQuery(&terms); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid search terms", []models.ErrorDetail{
			{Field: "query", Issue: err.Error()},
		}))
		return
	}

	invoices, err := api.invoiceService.ListInvoices(c.Request.Context(), userID)
	if err != nil {
		api.logger.WithError(err).Error("Error listing invoices")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error retrieving invoices"))
		return
	}

	invoices = api.invoiceService.SearchInvoices(invoices, terms)

	c.JSON(http.StatusOK, gin.H{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// GetInvoice obtiene una factura por ID para la vista de detalle
func (api *API) GetInvoice(c *gin.Context) {
	invoice, ok := api.fetchOwnedInvoice(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice guarda una edición parcial de la factura. Los campos que el
// formulario no tocó, identidad y procedencia incluidas, se conservan.
func (api *API) UpdateInvoice(c *gin.Context) {
	if _, ok := api.fetchOwnedInvoice(c); !ok {
		return
	}

	var edited models.Invoice
	if err := c.ShouldBindJSON(&edited); err != nil {
		api.logger.WithError(err).Error("Error binding invoice update")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	updated, err := api.invoiceService.UpdateInvoice(c.Request.Context(), c.Param("id"), &edited)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Invoice not found"))
			return
		}
		api.logger.WithError(err).Error("Error updating invoice")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error saving invoice"))
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteInvoice elimina una factura de forma definitiva
func (api *API) DeleteInvoice(c *gin.Context) {
	if _, ok := api.fetchOwnedInvoice(c); !ok {
		return
	}

	if err := api.invoiceService.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		api.logger.WithError(err).Error("Error deleting invoice")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error deleting invoice"))
		return
	}

	c.Status(http.StatusNoContent)
}

// GetInvoiceDocument entrega el documento fuente de la factura: con
// download=1 lo sirve como adjunto desde el bucket; en el resto de casos
// redirige a su URL de descarga.
func (api *API) GetInvoiceDocument(c *gin.Context) {
	invoice, ok := api.fetchOwnedInvoice(c)
	if !ok {
		return
	}

	if c.Query("download") == "1" && api.serveDocumentDownload(c, &invoice) {
		return
	}

	url, err := api.invoiceService.ResolveDocumentURL(c.Request.Context(), &invoice)
	if err != nil {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Invoice has no source document"))
		return
	}

	c.Redirect(http.StatusFound, url)
}

// serveDocumentDownload intenta servir el documento como adjunto. Retorna
// false si no pudo descargarlo y procede la redirección de siempre.
func (api *API) serveDocumentDownload(c *gin.Context, invoice *models.Invoice) bool {
	data, err := api.invoiceService.DownloadDocument(c.Request.Context(), invoice)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Invoice has no source document"))
			return true
		}
		if !errors.Is(err, services.ErrDocumentUnavailable) {
			api.logger.WithError(err).Warn("Error downloading document, falling back to redirect")
		}
		return false
	}

	c.Header("Content-Disposition", `attachment; filename="`+path.Base(invoice.FileID)+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
	return true
}

// ExportInvoices produce el archivo CSV o Excel con las facturas del usuario
func (api *API) ExportInvoices(c *gin.Context) {
	userID := c.GetString("userID")

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	var format services.Format
	switch req.Format {
	case "csv", "":
		format = services.FormatCSV
	case "xlsx", "spreadsheet":
		format = services.FormatXLSX
	default:
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid export format", []models.ErrorDetail{
			{Field: "format", Issue: "Must be csv or xlsx"},
		}))
		return
	}

	dateRange, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid date range", []models.ErrorDetail{
			{Field: "date_range", Issue: err.Error()},
		}))
		return
	}

	// Sin selección explícita se usa la preferencia guardada del usuario
	fields := req.Fields
	if len(fields) == 0 {
		fields = api.prefRepo.GetExportFields(c.Request.Context(), userID)
	}
	selected := make([]models.ExportField, 0, len(fields))
	for _, field := range fields {
		if field.Checked {
			selected = append(selected, field)
		}
	}

	data, filename, err := api.invoiceService.Export(c.Request.Context(), userID, selected, dateRange, format)
	if err != nil {
		api.logger.WithError(err).Error("Error exporting invoices")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error exporting invoices"))
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == services.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// GetExportFields retorna la selección de columnas guardada del usuario
func (api *API) GetExportFields(c *gin.Context) {
	fields := api.prefRepo.GetExportFields(c.Request.Context(), c.GetString("userID"))
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

// UpdateExportFields guarda la selección de columnas del usuario. Se escribe
// completa en cada cambio de marca.
func (api *API) UpdateExportFields(c *gin.Context) {
	var fields []models.ExportField
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	if err := api.prefRepo.SetExportFields(c.Request.Context(), c.GetString("userID"), fields); err != nil {
		api.logger.WithError(err).Error("Error saving export fields")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error saving export fields"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

// Logout revoca el token de sesión hasta su expiración natural
func (api *API) Logout(c *gin.Context) {
	sessionID := c.GetString("sessionID")
	if sessionID == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
		return
	}

	ttl := time.Until(sessionExpiry(c))
	if err := api.sessionRepo.Revoke(c.Request.Context(), sessionID, ttl); err != nil {
		api.logger.WithError(err).Error("Error revoking session")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error closing session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// fetchOwnedInvoice carga la factura del path y verifica que pertenece al
// usuario de la sesión. Escribe la respuesta de error si no procede seguir.
func (api *API) fetchOwnedInvoice(c *gin.Context) (models.Invoice, bool) {
	invoice, err := api.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("Invoice not found"))
			return models.Invoice{}, false
		}
		api.logger.WithError(err).Error("Error getting invoice")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error retrieving invoice"))
		return models.Invoice{}, false
	}

	// Un documento sin userId es anterior al sellado de propietario: sigue
	// accesible para cualquier sesión válida, y el compositor nunca le
	// escribe un propietario nuevo al guardarlo.
	if invoice.UserID != "" && invoice.UserID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, models.NewForbiddenError("Access denied to this invoice"))
		return models.Invoice{}, false
	}

	return invoice, true
}

func parseDateRange(start, end string) (*services.DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	dateRange := &services.DateRange{}
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, errors.New("start_date must use the DD.MM.YYYY format")
		}
		dateRange.Start = &t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return nil, errors.New("end_date must use the DD.MM.YYYY format")
		}
		dateRange.End = &t
	}

	return dateRange, nil
}
