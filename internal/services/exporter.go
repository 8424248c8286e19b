package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lsampedro/factumattic-console/internal/models"
)

// Format representa el formato de archivo de exportación
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// fechaLayout es el patrón fijo día.mes.año con el que se interpreta el
// campo "Fecha" al filtrar por rango.
const fechaLayout = "02.01.2006"

// exportSheetName es el nombre de la única hoja del libro exportado
const exportSheetName = "Facturas"

// DateRange acota la exportación por el campo "Fecha". Ambos límites son
// inclusivos.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r *DateRange) isBounded() bool {
	return r != nil && (r.Start != nil || r.End != nil)
}

// Exporter proyecta un conjunto de facturas canónicas sobre las columnas
// seleccionadas y lo serializa a CSV o a hoja de cálculo.
type Exporter struct {
	now func() time.Time
}

// NewExporter crea una nueva instancia del exportador
func NewExporter() *Exporter {
	return &Exporter{now: time.Now}
}

// BuildExport produce los bytes del archivo de exportación. Una lista vacía
// o una selección vacía producen una salida de solo cabecera, nunca un error.
func (e *Exporter) BuildExport(invoices []models.Invoice, fields []models.ExportField, dateRange *DateRange, format Format) ([]byte, error) {
	filtered := filterByFecha(invoices, dateRange)

	labels := make([]string, 0, len(fields))
	for _, field := range fields {
		labels = append(labels, field.Label)
	}

	rows := make([][]string, 0, len(filtered))
	for i := range filtered {
		row := make([]string, 0, len(fields))
		for _, field := range fields {
			row = append(row, projectField(&filtered[i], field.Key))
		}
		rows = append(rows, row)
	}

	switch format {
	case FormatXLSX:
		return buildXLSX(labels, rows)
	case FormatCSV:
		return buildCSV(labels, rows), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportFilename retorna el nombre de archivo convenido para la descarga:
// facturas_<fecha de hoy>.<extensión>.
func (e *Exporter) ExportFilename(format Format) string {
	return fmt.Sprintf("facturas_%s.%s", e.now().Format("2006-01-02"), format)
}

// filterByFecha aplica el rango de fechas sobre el campo "Fecha". Con algún
// límite puesto, una "Fecha" que no cumpla exactamente el patrón DD.MM.YYYY
// excluye la factura del resultado: el fallo de parseo se trata como "no
// coincide", no como error, así que las filas con fecha ilegible se
// descartan sin aviso. Sin límites no se parsea nada y pasan todas.
func filterByFecha(invoices []models.Invoice, dateRange *DateRange) []models.Invoice {
	if !dateRange.isBounded() {
		return invoices
	}

	filtered := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		fecha, err := time.Parse(fechaLayout, inv.Fecha)
		if err != nil {
			continue
		}
		if dateRange.Start != nil && fecha.Before(*dateRange.Start) {
			continue
		}
		if dateRange.End != nil && fecha.After(*dateRange.End) {
			continue
		}
		filtered = append(filtered, inv)
	}
	return filtered
}

// projectField resuelve el valor de la columna para una factura. Items se
// proyecta como los nombres de producto unidos por comas; el resto de
// columnas pasan tal cual, con vacío para los valores ausentes.
func projectField(inv *models.Invoice, key string) string {
	if key == "Items" {
		names := make([]string, 0, len(inv.Items))
		for _, item := range inv.Items {
			names = append(names, item.Producto)
		}
		return strings.Join(names, ", ")
	}

	value, _ := inv.Field(key)
	return value
}

// buildCSV serializa con el formato exacto que consumen las integraciones
// existentes: todos los valores envueltos en comillas dobles y unidos por
// comas, sin escapar comillas ni comas internas. Un valor con comillas o
// comas embebidas corrompe la fila; el formato se mantiene por
// compatibilidad hasta que haya una decisión de producto.
func buildCSV(labels []string, rows [][]string) []byte {
	lines := make([]string, 0, len(rows)+1)

	quoted := make([]string, 0, len(labels))
	for _, label := range labels {
		quoted = append(quoted, `"`+label+`"`)
	}
	lines = append(lines, strings.Join(quoted, ","))

	for _, row := range rows {
		values := make([]string, 0, len(row))
		for _, value := range row {
			values = append(values, `"`+value+`"`)
		}
		lines = append(lines, strings.Join(values, ","))
	}

	return []byte(strings.Join(lines, "\n"))
}

// buildXLSX serializa un libro de una sola hoja "Facturas" con la fila de
// cabecera y una fila por factura.
func buildXLSX(labels []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("error naming export sheet: %w", err)
	}

	for col, label := range labels {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("error resolving header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheetName, cell, label); err != nil {
			return nil, fmt.Errorf("error writing header cell: %w", err)
		}
	}

	for rowIdx, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return nil, fmt.Errorf("error resolving cell: %w", err)
			}
			if err := f.SetCellValue(exportSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("error writing cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error serializing workbook: %w", err)
	}

	return buf.Bytes(), nil
}
