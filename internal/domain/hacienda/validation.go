package hacienda

import (
	"fmt"
	"regexp"

	"github.com/jhoicas/hacienda-api/internal/domain"
	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

// RequiredFields campos de primer nivel obligatorios, en el orden en que se validan.
var RequiredFields = []string{
	"documentName", "providerId", "countryCode", "securityCode",
	"activityCode", "consecutiveIdentifier", "ceSituation", "branch", "terminal",
	"conditionSale", "paymentMethod",
}

var securityCodeRe = regexp.MustCompile(`^\d{8}$`)

// Validate revisa el payload normalizado y devuelve el primer campo inválido como
// *domain.ValidationError. Es una función pura: no modifica raw.
func Validate(raw Raw) (*Document, error) {
	if raw == nil {
		return nil, domain.NewValidationError("document", "Body inválido. Se espera un objeto document.")
	}

	for _, f := range RequiredFields {
		if !isNonEmptyString(raw[f]) {
			return nil, domain.NewValidationError(f, fmt.Sprintf("Falta o es inválido el campo '%s'.", f))
		}
	}

	// Se valida el valor sin recortar: " 12345678 " no es un código válido.
	if code, ok := raw["securityCode"].(string); !ok || !securityCodeRe.MatchString(code) {
		return nil, domain.NewValidationError("securityCode", "securityCode debe ser una cadena de 8 dígitos.")
	}

	emitter, err := validateParty(raw["emitter"], "emitter", "Falta el objeto emitter.")
	if err != nil {
		return nil, err
	}

	var receiver *Party
	if str(raw, "documentName") != pkghacienda.DocNameTiquete {
		rc, err := validateParty(raw["receiver"], "receiver", "Falta el objeto receiver para este tipo de documento.")
		if err != nil {
			return nil, err
		}
		receiver = &rc
	} else if m, ok := object(raw["receiver"]); ok {
		// En el tiquete el receptor es opcional; si viene se toma sin exigir la forma completa.
		rc := partyFrom(m)
		receiver = &rc
	}

	lines, err := validateOrderLines(raw["orderLines"])
	if err != nil {
		return nil, err
	}

	for _, f := range []string{"currencyCode", "exchangeRate"} {
		if v, present := raw[f]; present && v != nil && v != "" {
			if !isNonEmptyString(v) {
				return nil, domain.NewValidationError(f, fmt.Sprintf("%s debe ser string si se envía.", f))
			}
		}
	}

	doc := &Document{
		DocumentName:          str(raw, "documentName"),
		ProviderID:            str(raw, "providerId"),
		CountryCode:           str(raw, "countryCode"),
		SecurityCode:          str(raw, "securityCode"),
		ActivityCode:          str(raw, "activityCode"),
		ConsecutiveIdentifier: str(raw, "consecutiveIdentifier"),
		CESituation:           str(raw, "ceSituation"),
		Branch:                str(raw, "branch"),
		Terminal:              str(raw, "terminal"),
		ConditionSale:         str(raw, "conditionSale"),
		PaymentMethod:         str(raw, "paymentMethod"),
		CurrencyCode:          str(raw, "currencyCode"),
		ExchangeRate:          str(raw, "exchangeRate"),
		DocumentKey:           firstNonEmpty(str(raw, "documentKey"), str(raw, "clave")),
		Emitter:               emitter,
		Receiver:              receiver,
		OrderLines:            lines,
	}
	if m, ok := object(raw["referenceInfo"]); ok {
		doc.ReferenceInfo = &ReferenceInfo{
			DocumentType: str(m, "documentType"),
			Number:       str(m, "number"),
			IssueDate:    str(m, "issueDate"),
			Code:         str(m, "code"),
			Reason:       str(m, "reason"),
		}
	}
	return doc, nil
}

func validateParty(v any, field, missing string) (Party, error) {
	m, ok := object(v)
	if !ok {
		return Party{}, domain.NewValidationError(field, missing)
	}
	label := "Emitter"
	if field == "receiver" {
		label = "Receiver"
	}
	if !isNonEmptyString(m["fullName"]) {
		return Party{}, domain.NewValidationError(field+".fullName", label+".fullName es obligatorio.")
	}
	id, ok := object(m["identifier"])
	if !ok || !isNonEmptyString(id["type"]) || !isNonEmptyString(id["id"]) {
		return Party{}, domain.NewValidationError(field+".identifier",
			fmt.Sprintf("%s.identifier.type y %s.identifier.id son obligatorios.", label, field))
	}
	if !isNonEmptyString(m["activityCode"]) {
		return Party{}, domain.NewValidationError(field+".activityCode", label+".activityCode es obligatorio.")
	}
	loc, ok := object(m["location"])
	if !ok {
		return Party{}, domain.NewValidationError(field+".location", label+".location incompleta.")
	}
	for _, k := range []string{"province", "canton", "district", "neighborhood", "details"} {
		if !isNonEmptyString(loc[k]) {
			return Party{}, domain.NewValidationError(field+".location", label+".location incompleta.")
		}
	}
	return partyFrom(m), nil
}

func partyFrom(m map[string]any) Party {
	p := Party{
		FullName:       str(m, "fullName"),
		CommercialName: str(m, "commercialName"),
		ActivityCode:   str(m, "activityCode"),
		Email:          str(m, "email"),
	}
	if id, ok := object(m["identifier"]); ok {
		p.Identifier = Identifier{Type: str(id, "type"), ID: str(id, "id")}
	}
	if loc, ok := object(m["location"]); ok {
		p.Location = Location{
			Province:     str(loc, "province"),
			Canton:       str(loc, "canton"),
			District:     str(loc, "district"),
			Neighborhood: str(loc, "neighborhood"),
			Details:      str(loc, "details"),
		}
	}
	if ph, ok := object(m["phone"]); ok && isNonEmptyString(ph["number"]) {
		p.Phone = &Phone{CountryCode: str(ph, "countryCode"), Number: str(ph, "number")}
	}
	return p
}

func validateOrderLines(v any) ([]OrderLine, error) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, domain.NewValidationError("orderLines", "orderLines es obligatorio y debe ser un arreglo con al menos una línea.")
	}
	lines := make([]OrderLine, 0, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("orderLines[%d]", i)
		m, ok := object(item)
		if !ok {
			return nil, domain.NewValidationError(prefix, prefix+" debe ser un objeto.")
		}
		if !isNonEmptyString(m["detail"]) {
			return nil, domain.NewValidationError(prefix+".detail", prefix+".detail es obligatorio.")
		}
		price, ok := asDecimal(m["unitaryPrice"])
		if !ok {
			return nil, domain.NewValidationError(prefix+".unitaryPrice", prefix+".unitaryPrice debe ser número.")
		}
		if price.IsNegative() {
			return nil, domain.NewValidationError(prefix+".unitaryPrice", prefix+".unitaryPrice no puede ser negativo.")
		}
		line := OrderLine{
			Detail:       str(m, "detail"),
			Code:         str(m, "code"),
			MeasureUnit:  str(m, "measureUnit"),
			UnitaryPrice: price,
		}
		if q, present := m["quantity"]; present && q != nil {
			qty, ok := asDecimal(q)
			if !ok {
				return nil, domain.NewValidationError(prefix+".quantity", prefix+".quantity debe ser número si se provee.")
			}
			line.Quantity = &qty
		}
		if t, present := m["tax"]; present && t != nil {
			tm, ok := object(t)
			rate, isNum := asDecimal(tm["rate"])
			if !ok || !isNonEmptyString(tm["code"]) || !isNonEmptyString(tm["rateCode"]) || !isNum {
				return nil, domain.NewValidationError(prefix+".tax",
					prefix+".tax incompleto. 'code', 'rateCode' y 'rate' son obligatorios.")
			}
			line.Tax = &Tax{Code: str(tm, "code"), RateCode: str(tm, "rateCode"), Rate: rate}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
