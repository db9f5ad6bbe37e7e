// Package hacienda contiene catálogos, generación de clave numérica y puertos
// alineados a la normativa de Comprobantes Electrónicos del Ministerio de Hacienda
// (Costa Rica), versión 4.4.
package hacienda

// =============================================================================
// Tipos de comprobante (Anexos y Estructuras v4.4 - nota 4)
// Código de dos dígitos que forma parte de la clave y del número consecutivo.
// =============================================================================

const (
	DocTypeFactura            = "01" // Factura electrónica
	DocTypeNotaDebito         = "02" // Nota de débito electrónica
	DocTypeNotaCredito        = "03" // Nota de crédito electrónica
	DocTypeTiquete            = "04" // Tiquete electrónico
	DocTypeConfirmacion       = "05" // Confirmación de aceptación del comprobante
	DocTypeAceptacionParcial  = "06" // Confirmación de aceptación parcial
	DocTypeRechazo            = "07" // Confirmación de rechazo
	DocTypeFacturaCompra      = "08" // Factura electrónica de compra
	DocTypeFacturaExportacion = "09" // Factura electrónica de exportación
)

// Nombres de documento tal como los envía el cliente en documentName.
const (
	DocNameFactura            = "FacturaElectronica"
	DocNameNotaDebito         = "NotaDebitoElectronica"
	DocNameNotaCredito        = "NotaCreditoElectronica"
	DocNameTiquete            = "TiqueteElectronico"
	DocNameMensajeReceptor    = "MensajeReceptor"
	DocNameFacturaCompra      = "FacturaElectronicaCompra"
	DocNameFacturaExportacion = "FacturaElectronicaExportacion"
)

// ValidDocumentTypes códigos de comprobante aceptados por el servicio.
var ValidDocumentTypes = map[string]bool{
	DocTypeFactura: true, DocTypeNotaDebito: true, DocTypeNotaCredito: true,
	DocTypeTiquete: true, DocTypeConfirmacion: true, DocTypeAceptacionParcial: true,
	DocTypeRechazo: true, DocTypeFacturaCompra: true, DocTypeFacturaExportacion: true,
}

// emittableDocuments documentos que se construyen a partir de líneas de detalle.
// El MensajeReceptor no se emite por este flujo.
var emittableDocuments = map[string]string{
	DocNameFactura:            DocTypeFactura,
	DocNameNotaDebito:         DocTypeNotaDebito,
	DocNameNotaCredito:        DocTypeNotaCredito,
	DocNameTiquete:            DocTypeTiquete,
	DocNameFacturaCompra:      DocTypeFacturaCompra,
	DocNameFacturaExportacion: DocTypeFacturaExportacion,
}

// DocumentTypeCode devuelve el código de comprobante para un documentName emitible.
func DocumentTypeCode(documentName string) (string, bool) {
	code, ok := emittableDocuments[documentName]
	return code, ok
}

// =============================================================================
// Namespaces XML v4.4 por tipo de comprobante
// =============================================================================

const schemaBase = "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/v4.4/"

// DocumentNamespaces namespace por defecto del elemento raíz de cada comprobante.
var DocumentNamespaces = map[string]string{
	DocNameFactura:            schemaBase + "facturaElectronica",
	DocNameNotaDebito:         schemaBase + "notaDebitoElectronica",
	DocNameNotaCredito:        schemaBase + "notaCreditoElectronica",
	DocNameTiquete:            schemaBase + "tiqueteElectronico",
	DocNameFacturaCompra:      schemaBase + "facturaElectronicaCompra",
	DocNameFacturaExportacion: schemaBase + "facturaElectronicaExportacion",
}

// =============================================================================
// Situación del comprobante (nota 5)
// =============================================================================

const (
	SituationNormal       = "1" // Normal
	SituationContingencia = "2" // Contingencia
	SituationSinInternet  = "3" // Sin internet
)

// ValidSituations situaciones aceptadas en la clave.
var ValidSituations = map[string]bool{
	SituationNormal: true, SituationContingencia: true, SituationSinInternet: true,
}

// =============================================================================
// Tipos de identificación (nota 4.1)
// =============================================================================

const (
	IdentificationFisica          = "01" // Cédula física (9 dígitos)
	IdentificationJuridica        = "02" // Cédula jurídica (10 dígitos)
	IdentificationDIMEX           = "03" // DIMEX (11 o 12 dígitos)
	IdentificationNITE            = "04" // NITE (10 dígitos)
	IdentificationExtranjero      = "05" // Extranjero no domiciliado
	IdentificationNoContribuyente = "06" // No contribuyente
)

// ValidIdentificationTypes tipos de identificación válidos para emisor y receptor.
var ValidIdentificationTypes = map[string]bool{
	IdentificationFisica: true, IdentificationJuridica: true, IdentificationDIMEX: true,
	IdentificationNITE: true, IdentificationExtranjero: true, IdentificationNoContribuyente: true,
}

// =============================================================================
// Condiciones de venta (nota 5) y medios de pago (nota 6)
// =============================================================================

const (
	SaleConditionContado                 = "01"
	SaleConditionCredito                 = "02"
	SaleConditionConsignacion            = "03"
	SaleConditionApartado                = "04"
	SaleConditionArrendamientoOpcion     = "05"
	SaleConditionArrendamientoFinanciero = "06"
	SaleConditionOtros                   = "99"
)

const (
	PaymentMethodEfectivo      = "01"
	PaymentMethodTarjeta       = "02"
	PaymentMethodCheque        = "03"
	PaymentMethodTransferencia = "04"
	PaymentMethodTerceros      = "05"
	PaymentMethodSinpeMovil    = "06"
	PaymentMethodPlataforma    = "07"
	PaymentMethodOtros         = "99"
)

// =============================================================================
// Impuestos (nota 8) y tarifas IVA (nota 8.1)
// =============================================================================

const (
	TaxCodeIVA                = "01" // Impuesto al Valor Agregado
	TaxCodeSelectivo          = "02" // Impuesto Selectivo de Consumo
	TaxCodeCombustibles       = "03" // Impuesto único a los combustibles
	TaxCodeBebidas            = "04" // Impuesto específico de bebidas alcohólicas
	TaxCodeIVACalculoEspecial = "07" // IVA cálculo especial
	TaxCodeOtros              = "99"
)

const (
	RateCodeExento       = "01" // Tarifa 0% (exento)
	RateCodeReducida1    = "02" // Tarifa reducida 1%
	RateCodeReducida2    = "03" // Tarifa reducida 2%
	RateCodeReducida4    = "04" // Tarifa reducida 4%
	RateCodeTransitoria0 = "05" // Transitorio 0%
	RateCodeTransitoria4 = "06" // Transitorio 4%
	RateCodeTransitoria8 = "07" // Transitorio 8%
	RateCodeGeneral      = "08" // Tarifa general 13%
)

// =============================================================================
// Unidades de medida de servicios (nota 15)
// Las líneas con estas unidades suman en TotalServGravados / TotalServExentos.
// =============================================================================

const UnitUnidad = "Unid"

// ServiceUnits unidades que identifican una línea como servicio.
var ServiceUnits = map[string]bool{
	"Sp": true, "Spe": true, "St": true, "h": true, "d": true, "Al": true,
	"Alc": true, "Cm": true, "I": true, "Os": true,
}

// =============================================================================
// Estados de Hacienda (campo ind-estado de la consulta /recepcion/{clave})
// =============================================================================

const (
	RemoteStatusRecibido   = "recibido"
	RemoteStatusProcesando = "procesando"
	RemoteStatusAceptado   = "aceptado"
	RemoteStatusRechazado  = "rechazado"
	RemoteStatusError      = "error"
)

// IsTerminalRemoteStatus indica si Hacienda ya emitió un veredicto definitivo.
func IsTerminalRemoteStatus(s string) bool {
	switch s {
	case RemoteStatusAceptado, RemoteStatusRechazado, RemoteStatusError:
		return true
	}
	return false
}
