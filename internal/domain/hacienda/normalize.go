package hacienda

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hacienda-api/internal/domain"
)

// Raw payload tal como llega del cliente, con números como json.Number.
type Raw map[string]any

// Normalize decodifica el cuerpo y lo lleva a una sola forma: acepta
// {"document": {...}} o el objeto plano.
func Normalize(body []byte) (Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, domain.NewValidationError("document", "Body inválido. Se espera un objeto document.")
	}
	obj, ok := top.(map[string]any)
	if !ok {
		return nil, domain.NewValidationError("document", "Body inválido. Se espera un objeto document.")
	}
	if inner, present := obj["document"]; present && inner != nil {
		wrapped, ok := inner.(map[string]any)
		if !ok {
			return nil, domain.NewValidationError("document", "El campo document debe ser un objeto.")
		}
		return Raw(wrapped), nil
	}
	return Raw(obj), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Acceso tipado sobre el payload suelto
// ──────────────────────────────────────────────────────────────────────────────

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

// asDecimal acepta solo números JSON; las cadenas no cuentan como número.
func asDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}
