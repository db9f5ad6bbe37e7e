// Package hacienda contiene el modelo validado del comprobante, la validación estructural
// previa a la emisión, los totales y las reglas de transición de estado. Utiliza catálogos de pkg/hacienda.
package hacienda

import (
	"github.com/shopspring/decimal"

	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

// Document comprobante ya validado; única forma que consume el núcleo.
type Document struct {
	DocumentName          string         `json:"documentName"`
	ProviderID            string         `json:"providerId"`
	CountryCode           string         `json:"countryCode"`
	SecurityCode          string         `json:"securityCode"`
	ActivityCode          string         `json:"activityCode"`
	ConsecutiveIdentifier string         `json:"consecutiveIdentifier"`
	CESituation           string         `json:"ceSituation"`
	Branch                string         `json:"branch"`
	Terminal              string         `json:"terminal"`
	ConditionSale         string         `json:"conditionSale"`
	PaymentMethod         string         `json:"paymentMethod"`
	CurrencyCode          string         `json:"currencyCode,omitempty"`
	ExchangeRate          string         `json:"exchangeRate,omitempty"`
	DocumentKey           string         `json:"documentKey,omitempty"`
	Emitter               Party          `json:"emitter"`
	Receiver              *Party         `json:"receiver,omitempty"`
	OrderLines            []OrderLine    `json:"orderLines"`
	ReferenceInfo         *ReferenceInfo `json:"referenceInfo,omitempty"`
}

// Party emisor o receptor.
type Party struct {
	FullName       string     `json:"fullName"`
	CommercialName string     `json:"commercialName,omitempty"`
	Identifier     Identifier `json:"identifier"`
	ActivityCode   string     `json:"activityCode"`
	Location       Location   `json:"location"`
	Email          string     `json:"email,omitempty"`
	Phone          *Phone     `json:"phone,omitempty"`
}

type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Location struct {
	Province     string `json:"province"`
	Canton       string `json:"canton"`
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
	Details      string `json:"details"`
}

type Phone struct {
	CountryCode string `json:"countryCode"`
	Number      string `json:"number"`
}

// OrderLine línea de detalle. Los montos se conservan con la precisión recibida.
type OrderLine struct {
	Detail       string           `json:"detail"`
	Code         string           `json:"code,omitempty"`
	MeasureUnit  string           `json:"measureUnit,omitempty"`
	UnitaryPrice decimal.Decimal  `json:"unitaryPrice"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	Tax          *Tax             `json:"tax,omitempty"`
}

type Tax struct {
	Code     string          `json:"code"`
	RateCode string          `json:"rateCode"`
	Rate     decimal.Decimal `json:"rate"`
}

// ReferenceInfo documento al que hace referencia una nota de crédito o débito.
type ReferenceInfo struct {
	DocumentType string `json:"documentType"`
	Number       string `json:"number"`
	IssueDate    string `json:"issueDate"`
	Code         string `json:"code"`
	Reason       string `json:"reason"`
}

// IsTicket el tiquete no requiere receptor.
func (d *Document) IsTicket() bool {
	return d.DocumentName == pkghacienda.DocNameTiquete
}

// TypeCode código de dos dígitos del comprobante; false si documentName no es emitible.
func (d *Document) TypeCode() (string, bool) {
	return pkghacienda.DocumentTypeCode(d.DocumentName)
}

// ReceiverName nombre del receptor o vacío.
func (d *Document) ReceiverName() string {
	if d.Receiver == nil {
		return ""
	}
	return d.Receiver.FullName
}

// EffectiveQuantity cantidad de la línea; 1 si no se envió.
func (l OrderLine) EffectiveQuantity() decimal.Decimal {
	if l.Quantity == nil {
		return decimal.NewFromInt(1)
	}
	return *l.Quantity
}

// Unit unidad de medida; "Unid" por defecto.
func (l OrderLine) Unit() string {
	if l.MeasureUnit == "" {
		return pkghacienda.UnitUnidad
	}
	return l.MeasureUnit
}

// IsService la unidad identifica la línea como servicio.
func (l OrderLine) IsService() bool {
	return pkghacienda.ServiceUnits[l.Unit()]
}
