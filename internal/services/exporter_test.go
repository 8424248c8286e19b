package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lsampedro/factumattic-console/internal/models"
)

func exportFields(keys ...string) []models.ExportField {
	labels := map[string]string{
		"Fecha":                  "Fecha",
		"Nombre Empresa Emisora": "Empresa Emisora",
		"Total a Pagar":          "Total",
		"Items":                  "Items",
	}
	fields := make([]models.ExportField, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, models.ExportField{Key: key, Label: labels[key], Checked: true})
	}
	return fields
}

func date(day, month, year int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestBuildExport_CSVExactFormat(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Fecha: "01.01.2024", NombreEmpresaEmisora: "Acme"},
		{Fecha: "15.02.2024", NombreEmpresaEmisora: "Beta"},
	}

	data, err := e.BuildExport(invoices, exportFields("Fecha", "Nombre Empresa Emisora"), nil, FormatCSV)
	require.NoError(t, err)

	expected := "\"Fecha\",\"Empresa Emisora\"\n\"01.01.2024\",\"Acme\"\n\"15.02.2024\",\"Beta\""
	assert.Equal(t, expected, string(data))
}

func TestBuildExport_NoDateRangeKeepsEveryRow(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Fecha: "01.01.2024"},
		{Fecha: "sin fecha"},
		{Fecha: ""},
	}

	data, err := e.BuildExport(invoices, exportFields("Fecha"), nil, FormatCSV)
	require.NoError(t, err)

	// Sin rango no se parsea nada: pasan las tres filas más la cabecera
	assert.Len(t, bytes.Split(data, []byte("\n")), 4)
}

func TestBuildExport_DateBoundsAreInclusive(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Fecha: "01.01.2024", NombreEmpresaEmisora: "Acme"},
		{Fecha: "15.02.2024", NombreEmpresaEmisora: "Beta"},
	}

	data, err := e.BuildExport(invoices, exportFields("Nombre Empresa Emisora"), &DateRange{
		Start: date(1, 1, 2024),
		End:   date(15, 2, 2024),
	}, FormatCSV)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"Acme"`)
	assert.Contains(t, string(data), `"Beta"`)
}

func TestBuildExport_UnparseableFechaExcludedOnceBounded(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Fecha: "01.01.2024", NombreEmpresaEmisora: "Acme"},
		{Fecha: "2024-01-05", NombreEmpresaEmisora: "FormatoISO"},
		{Fecha: "", NombreEmpresaEmisora: "SinFecha"},
	}

	data, err := e.BuildExport(invoices, exportFields("Nombre Empresa Emisora"), &DateRange{
		Start: date(1, 1, 2024),
	}, FormatCSV)
	require.NoError(t, err)

	// Las fechas ilegibles se descartan en silencio, nunca fallan
	assert.Contains(t, string(data), `"Acme"`)
	assert.NotContains(t, string(data), "FormatoISO")
	assert.NotContains(t, string(data), "SinFecha")
}

func TestBuildExport_StartBoundExcludesEarlierRows(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Fecha: "01.01.2024", NombreEmpresaEmisora: "Acme"},
		{Fecha: "15.02.2024", NombreEmpresaEmisora: "Beta"},
	}

	data, err := e.BuildExport(invoices, exportFields("Nombre Empresa Emisora"), &DateRange{
		Start: date(2, 1, 2024),
	}, FormatCSV)
	require.NoError(t, err)

	assert.NotContains(t, string(data), `"Acme"`)
	assert.Contains(t, string(data), `"Beta"`)
}

func TestBuildExport_ItemsProjectedAsProductNames(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Items: []models.InvoiceItem{{Producto: "Tornillos"}, {Producto: "Tuercas"}}},
	}

	data, err := e.BuildExport(invoices, exportFields("Items"), nil, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "\"Items\"\n\"Tornillos, Tuercas\"", string(data))
}

func TestBuildExport_QuotesAndCommasNotEscaped(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{NombreEmpresaEmisora: `Acme, "la buena"`},
	}

	data, err := e.BuildExport(invoices, exportFields("Nombre Empresa Emisora"), nil, FormatCSV)
	require.NoError(t, err)

	// Formato heredado: los valores con comas o comillas van tal cual
	assert.Equal(t, "\"Empresa Emisora\"\n\"Acme, \"la buena\"\"", string(data))
}

func TestBuildExport_EmptyInputsProduceHeaderOnly(t *testing.T) {
	e := NewExporter()

	t.Run("sin facturas", func(t *testing.T) {
		data, err := e.BuildExport(nil, exportFields("Fecha"), nil, FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, `"Fecha"`, string(data))
	})

	t.Run("sin columnas", func(t *testing.T) {
		data, err := e.BuildExport([]models.Invoice{{Fecha: "01.01.2024"}}, nil, nil, FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, "\n", string(data))
	})
}

func TestBuildExport_XLSXSingleSheet(t *testing.T) {
	e := NewExporter()

	invoices := []models.Invoice{
		{Fecha: "01.01.2024", NombreEmpresaEmisora: "Acme", TotalAPagar: "121,00"},
		{Fecha: "15.02.2024", NombreEmpresaEmisora: "Beta", TotalAPagar: "50,00"},
	}

	data, err := e.BuildExport(invoices, exportFields("Fecha", "Nombre Empresa Emisora", "Total a Pagar"), nil, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Facturas"}, f.GetSheetList())

	rows, err := f.GetRows("Facturas")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Fecha", "Empresa Emisora", "Total"}, rows[0])
	assert.Equal(t, []string{"01.01.2024", "Acme", "121,00"}, rows[1])
	assert.Equal(t, []string{"15.02.2024", "Beta", "50,00"}, rows[2])
}

func TestExportFilename(t *testing.T) {
	e := &Exporter{now: func() time.Time {
		return time.Date(2024, 3, 9, 17, 30, 0, 0, time.UTC)
	}}

	assert.Equal(t, "facturas_2024-03-09.csv", e.ExportFilename(FormatCSV))
	assert.Equal(t, "facturas_2024-03-09.xlsx", e.ExportFilename(FormatXLSX))
}
