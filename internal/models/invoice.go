package models

import "time"

// RawRecord representa un documento tal y como se persiste en el almacén:
// un mapa sin tipar que puede anidar los campos de la factura bajo "data"
// o llevarlos en el nivel superior. Esta forma nunca debe propagarse más
// allá del normalizador.
type RawRecord = map[string]interface{}

// InvoiceItem representa una línea de producto de la factura
type InvoiceItem struct {
	Producto         string `json:"Producto"`
	Cantidad         string `json:"Cantidad"`
	PrecioUnitario   string `json:"Precio Unitario"`
	ImpuestoAplicado string `json:"Impuesto Aplicado"`
	Subtotal         string `json:"Subtotal"`
	PrecioTotal      string `json:"Precio Total"`
}

// IVADetail representa un desglose de IVA de la factura
type IVADetail struct {
	BaseImponible string `json:"Base imponible"`
	TipoIVA       string `json:"Tipo de IVA"`
	ImporteIVA    string `json:"Importe de IVA"`
}

// Invoice es el modelo canónico de factura que usa toda la consola.
// Los importes y fechas se almacenan como cadenas: el almacén no garantiza
// ningún tipado numérico ni de fecha en reposo.
type Invoice struct {
	ID        string     `json:"id"`
	FileID    string     `json:"file_id"`
	UserID    string     `json:"userId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`

	Fecha                     string `json:"Fecha,omitempty"`
	NumeroFactura             string `json:"Número de Factura,omitempty"`
	NombreEmpresaEmisora      string `json:"Nombre Empresa Emisora,omitempty"`
	NIFEmpresaEmisora         string `json:"NIF Empresa Emisora,omitempty"`
	DireccionEmpresaEmisora   string `json:"Dirección Empresa Emisora,omitempty"`
	NombreEmpresaReceptora    string `json:"Nombre Empresa Receptora,omitempty"`
	NIFEmpresaReceptora       string `json:"NIF Empresa Receptora,omitempty"`
	DireccionEmpresaReceptora string `json:"Dirección Empresa Receptora,omitempty"`
	CuotaRetencion            string `json:"Cuota Retención,omitempty"`
	TipoRetencion             string `json:"Tipo de Retención,omitempty"`
	ImporteAntesImpuestos     string `json:"Importe Total Antes de Impuestos,omitempty"`
	ImporteImpuestos          string `json:"Importe Total de Impuestos,omitempty"`
	TotalAPagar               string `json:"Total a Pagar,omitempty"`
	FechaVencimiento          string `json:"Fecha de Vencimiento,omitempty"`
	MetodoPago                string `json:"Método de Pago,omitempty"`
	DetallesPago              string `json:"Detalles de Pago,omitempty"`

	Items []InvoiceItem `json:"Items,omitempty"`
	IVA   []IVADetail   `json:"IVA,omitempty"`

	// Extra conserva los campos desconocidos del documento original para
	// que una actualización no los pierda. No se expone por la API.
	Extra map[string]interface{} `json:"-"`
}

// Field retorna el valor escalar de la factura bajo su etiqueta canónica.
// Items e IVA no son escalares y los resuelve quien proyecta.
func (inv *Invoice) Field(key string) (string, bool) {
	switch key {
	case "Fecha":
		return inv.Fecha, true
	case "Número de Factura":
		return inv.NumeroFactura, true
	case "Nombre Empresa Emisora":
		return inv.NombreEmpresaEmisora, true
	case "NIF Empresa Emisora":
		return inv.NIFEmpresaEmisora, true
	case "Dirección Empresa Emisora":
		return inv.DireccionEmpresaEmisora, true
	case "Nombre Empresa Receptora":
		return inv.NombreEmpresaReceptora, true
	case "NIF Empresa Receptora":
		return inv.NIFEmpresaReceptora, true
	case "Dirección Empresa Receptora":
		return inv.DireccionEmpresaReceptora, true
	case "Cuota Retención":
		return inv.CuotaRetencion, true
	case "Tipo de Retención":
		return inv.TipoRetencion, true
	case "Importe Total Antes de Impuestos":
		return inv.ImporteAntesImpuestos, true
	case "Importe Total de Impuestos":
		return inv.ImporteImpuestos, true
	case "Total a Pagar":
		return inv.TotalAPagar, true
	case "Fecha de Vencimiento":
		return inv.FechaVencimiento, true
	case "Método de Pago":
		return inv.MetodoPago, true
	case "Detalles de Pago":
		return inv.DetallesPago, true
	}
	return "", false
}

// ExportField representa una columna seleccionable para exportación
type ExportField struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// DefaultExportFields retorna la selección de columnas por defecto de la
// consola: fecha y empresa emisora marcadas, el resto sin marcar.
func DefaultExportFields() []ExportField {
	return []ExportField{
		{Key: "Fecha", Label: "Fecha", Checked: true},
		{Key: "Número de Factura", Label: "Número de Factura", Checked: false},
		{Key: "Nombre Empresa Emisora", Label: "Empresa Emisora", Checked: true},
		{Key: "NIF Empresa Emisora", Label: "NIF Emisor", Checked: false},
		{Key: "Dirección Empresa Emisora", Label: "Dirección Emisor", Checked: false},
		{Key: "Nombre Empresa Receptora", Label: "Empresa Receptora", Checked: false},
		{Key: "NIF Empresa Receptora", Label: "NIF Receptor", Checked: false},
		{Key: "Dirección Empresa Receptora", Label: "Dirección Receptor", Checked: false},
		{Key: "Total a Pagar", Label: "Total", Checked: false},
		{Key: "Fecha de Vencimiento", Label: "Fecha de Vencimiento", Checked: false},
		{Key: "Método de Pago", Label: "Método de Pago", Checked: false},
		{Key: "Detalles de Pago", Label: "Detalles de Pago", Checked: false},
		{Key: "Importe Total Antes de Impuestos", Label: "Base Imponible", Checked: false},
		{Key: "Importe Total de Impuestos", Label: "Total Impuestos", Checked: false},
	}
}

// SearchTerms representa los filtros de búsqueda del listado
type SearchTerms struct {
	Empresa string `form:"empresa" json:"empresa"`
	Importe string `form:"importe" json:"importe"`
	Fecha   string `form:"fecha" json:"fecha"`
}

// IsZero retorna true si no hay ningún término de búsqueda
func (t SearchTerms) IsZero() bool {
	return t.Empresa == "" && t.Importe == "" && t.Fecha == ""
}
