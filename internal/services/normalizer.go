package services

import (
	"fmt"
	"time"

	"github.com/lsampedro/factumattic-console/internal/models"
)

// knownFieldKeys son las claves que el normalizador resuelve explícitamente;
// cualquier otra clave del documento pasa a Invoice.Extra sin tipar.
var knownFieldKeys = map[string]bool{
	"id": true, "file_id": true, "userId": true,
	"createdAt": true, "date": true,
	"amount": true, "companyName": true, "invoiceNumber": true,
	"Fecha": true, "Número de Factura": true,
	"Nombre Empresa Emisora": true, "NIF Empresa Emisora": true, "Dirección Empresa Emisora": true,
	"Nombre Empresa Receptora": true, "NIF Empresa Receptora": true, "Dirección Empresa Receptora": true,
	"Cuota Retención": true, "Tipo de Retención": true,
	"Importe Total Antes de Impuestos": true, "Importe Total de Impuestos": true,
	"Total a Pagar": true, "Fecha de Vencimiento": true,
	"Método de Pago": true, "Detalles de Pago": true,
	"Items": true, "IVA": true,
}

// Normalizer convierte un registro crudo del almacén, con cualquiera de sus
// formas históricas, en el modelo canónico Invoice. Es una transformación
// pura: un campo ausente produce un valor vacío, nunca un error; solo un
// documento inexistente es un error, y eso lo decide el repositorio.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer crea una nueva instancia del normalizador
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize normaliza un registro para el listado. Si el documento no trae
// createdAt ni date, el instante de creación queda ausente: el listado no
// fabrica fechas para mostrar u ordenar.
func (n *Normalizer) Normalize(raw models.RawRecord) models.Invoice {
	return n.normalize(raw, false)
}

// NormalizeDetail normaliza un registro para la vista de detalle. Además de
// la forma canónica acepta la forma heredada con campos de sistema en inglés
// (date, invoiceNumber, companyName, amount), que solo se usan cuando la
// etiqueta española correspondiente está ausente.
func (n *Normalizer) NormalizeDetail(raw models.RawRecord) models.Invoice {
	return n.normalize(raw, true)
}

func (n *Normalizer) normalize(raw models.RawRecord, detail bool) models.Invoice {
	source := fieldSource(raw)

	inv := models.Invoice{
		ID:     asString(raw["id"]),
		FileID: asString(source["file_id"]),
		UserID: asString(raw["userId"]),

		Fecha:                     asString(source["Fecha"]),
		NumeroFactura:             asString(source["Número de Factura"]),
		NombreEmpresaEmisora:      asString(source["Nombre Empresa Emisora"]),
		NIFEmpresaEmisora:         asString(source["NIF Empresa Emisora"]),
		DireccionEmpresaEmisora:   asString(source["Dirección Empresa Emisora"]),
		NombreEmpresaReceptora:    asString(source["Nombre Empresa Receptora"]),
		NIFEmpresaReceptora:       asString(source["NIF Empresa Receptora"]),
		DireccionEmpresaReceptora: asString(source["Dirección Empresa Receptora"]),
		CuotaRetencion:            asString(source["Cuota Retención"]),
		TipoRetencion:             asString(source["Tipo de Retención"]),
		ImporteAntesImpuestos:     asString(source["Importe Total Antes de Impuestos"]),
		ImporteImpuestos:          asString(source["Importe Total de Impuestos"]),
		TotalAPagar:               asString(source["Total a Pagar"]),
		FechaVencimiento:          asString(source["Fecha de Vencimiento"]),
		MetodoPago:                asString(source["Método de Pago"]),
		DetallesPago:              asString(source["Detalles de Pago"]),

		Items: asItems(source["Items"]),
		IVA:   asIVA(source["IVA"]),
	}

	if inv.FileID == "" {
		inv.FileID = asString(raw["file_id"])
	}
	if inv.UserID == "" {
		inv.UserID = asString(source["userId"])
	}

	// Política de resolución del instante de creación: createdAt, luego
	// date, ambos en el nivel superior del documento.
	if t, ok := asTime(raw["createdAt"]); ok {
		inv.CreatedAt = &t
	} else if t, ok := asTime(raw["date"]); ok {
		inv.CreatedAt = &t
	} else if detail {
		now := n.now()
		inv.CreatedAt = &now
	}

	if detail {
		if inv.Fecha == "" {
			if t, ok := asTime(source["date"]); ok {
				inv.Fecha = t.Format("2/1/2006")
			}
		}
		if inv.NumeroFactura == "" {
			inv.NumeroFactura = asString(source["invoiceNumber"])
		}
		if inv.NombreEmpresaEmisora == "" {
			inv.NombreEmpresaEmisora = asString(source["companyName"])
		}
		if inv.TotalAPagar == "" {
			inv.TotalAPagar = asString(source["amount"])
		}
	}

	// Claves desconocidas: se conservan tal cual para que una edición
	// posterior no las pierda.
	for key, value := range source {
		if !knownFieldKeys[key] {
			if inv.Extra == nil {
				inv.Extra = make(map[string]interface{})
			}
			inv.Extra[key] = value
		}
	}

	return inv
}

// fieldSource resuelve el contenedor de campos del registro: el sub-mapa
// "data" si existe, el registro mismo si no.
func fieldSource(raw models.RawRecord) map[string]interface{} {
	if data, ok := raw["data"].(map[string]interface{}); ok {
		return data
	}
	return raw
}

// asString retorna el valor como cadena. El almacén no garantiza tipos, así
// que cualquier escalar no textual se representa tal cual.
func asString(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// asTime retorna el valor como instante si el almacén lo persistió como
// timestamp nativo.
func asTime(v interface{}) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case *time.Time:
		if value != nil {
			return *value, true
		}
	}
	return time.Time{}, false
}

func asItems(v interface{}) []models.InvoiceItem {
	entries, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var items []models.InvoiceItem
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		items = append(items, models.InvoiceItem{
			Producto:         asString(fields["Producto"]),
			Cantidad:         asString(fields["Cantidad"]),
			PrecioUnitario:   asString(fields["Precio Unitario"]),
			ImpuestoAplicado: asString(fields["Impuesto Aplicado"]),
			Subtotal:         asString(fields["Subtotal"]),
			PrecioTotal:      asString(fields["Precio Total"]),
		})
	}
	return items
}

func asIVA(v interface{}) []models.IVADetail {
	entries, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var details []models.IVADetail
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		details = append(details, models.IVADetail{
			BaseImponible: asString(fields["Base imponible"]),
			TipoIVA:       asString(fields["Tipo de IVA"]),
			ImporteIVA:    asString(fields["Importe de IVA"]),
		})
	}
	return details
}
