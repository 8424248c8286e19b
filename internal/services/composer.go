package services

import (
	"github.com/lsampedro/factumattic-console/internal/models"
)

// Composer reconstruye el payload de escritura a partir de un modelo
// editado y del original leído del almacén. El payload reemplaza por
// completo el sub-mapa "data", así que todas las claves editables van
// siempre presentes, aunque el usuario no las haya tocado.
type Composer struct{}

// NewComposer crea una nueva instancia del compositor
func NewComposer() *Composer {
	return &Composer{}
}

// ComposeUpdate construye el payload de actualización. Los campos de
// sistema amount, companyName e invoiceNumber se derivan de los campos
// editados; date y userId salen siempre del original, da igual lo que
// traiga el formulario de edición. El compositor no persiste nada: el
// que llama escribe el payload y, si la escritura falla, conserva la
// factura mostrada y el buffer de edición.
func (c *Composer) ComposeUpdate(edited, original *models.Invoice) models.RawRecord {
	data := models.RawRecord{}

	// Campos desconocidos del documento original: pasan intactos para que
	// el reemplazo completo de "data" no los destruya.
	for key, value := range original.Extra {
		data[key] = value
	}

	data["Fecha"] = edited.Fecha
	data["Número de Factura"] = edited.NumeroFactura
	data["Nombre Empresa Emisora"] = edited.NombreEmpresaEmisora
	data["NIF Empresa Emisora"] = edited.NIFEmpresaEmisora
	data["Dirección Empresa Emisora"] = edited.DireccionEmpresaEmisora
	data["Nombre Empresa Receptora"] = edited.NombreEmpresaReceptora
	data["NIF Empresa Receptora"] = edited.NIFEmpresaReceptora
	data["Dirección Empresa Receptora"] = edited.DireccionEmpresaReceptora
	data["Cuota Retención"] = edited.CuotaRetencion
	data["Tipo de Retención"] = edited.TipoRetencion
	data["Importe Total Antes de Impuestos"] = edited.ImporteAntesImpuestos
	data["Importe Total de Impuestos"] = edited.ImporteImpuestos
	data["Total a Pagar"] = edited.TotalAPagar
	data["Fecha de Vencimiento"] = edited.FechaVencimiento
	data["Método de Pago"] = edited.MetodoPago
	data["Detalles de Pago"] = edited.DetallesPago

	// Items e IVA se escriben como la secuencia que tenga el buffer de
	// edición en ese momento, incluidas las ediciones por índice de las
	// filas de IVA. Ausente se escribe como secuencia vacía, no se omite.
	data["Items"] = itemsToRaw(edited.Items)
	data["IVA"] = ivaToRaw(edited.IVA)

	// file_id identifica el documento fuente: viaja siempre desde el
	// original, nunca desde la edición.
	if original.FileID != "" {
		data["file_id"] = original.FileID
	}

	payload := models.RawRecord{
		"amount":        edited.TotalAPagar,
		"companyName":   edited.NombreEmpresaEmisora,
		"invoiceNumber": edited.NumeroFactura,
		"data":          data,
	}

	if original.CreatedAt != nil {
		payload["date"] = *original.CreatedAt
	}
	if original.UserID != "" {
		payload["userId"] = original.UserID
	}

	return payload
}

func itemsToRaw(items []models.InvoiceItem) []interface{} {
	raw := make([]interface{}, 0, len(items))
	for _, item := range items {
		raw = append(raw, map[string]interface{}{
			"Producto":          item.Producto,
			"Cantidad":          item.Cantidad,
			"Precio Unitario":   item.PrecioUnitario,
			"Impuesto Aplicado": item.ImpuestoAplicado,
			"Subtotal":          item.Subtotal,
			"Precio Total":      item.PrecioTotal,
		})
	}
	return raw
}

func ivaToRaw(details []models.IVADetail) []interface{} {
	raw := make([]interface{}, 0, len(details))
	for _, detail := range details {
		raw = append(raw, map[string]interface{}{
			"Base imponible": detail.BaseImponible,
			"Tipo de IVA":    detail.TipoIVA,
			"Importe de IVA": detail.ImporteIVA,
		})
	}
	return raw
}
