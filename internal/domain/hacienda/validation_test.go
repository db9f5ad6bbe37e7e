package hacienda_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/domain"
	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func party(name, id string) map[string]any {
	return map[string]any{
		"fullName":     name,
		"identifier":   map[string]any{"type": "02", "id": id},
		"activityCode": "930903",
		"location": map[string]any{
			"province":     "1",
			"canton":       "01",
			"district":     "01",
			"neighborhood": "01",
			"details":      "Avenida central",
		},
	}
}

// validPayload documento mínimo válido: 1 emisor, 1 receptor, 1 línea.
func validPayload() map[string]any {
	return map[string]any{
		"documentName":          "FacturaElectronica",
		"providerId":            "P1",
		"countryCode":           "506",
		"securityCode":          "12345678",
		"activityCode":          "930903",
		"consecutiveIdentifier": "1",
		"ceSituation":           "1",
		"branch":                "1",
		"terminal":              "1",
		"conditionSale":         "01",
		"paymentMethod":         "01",
		"emitter":               party("EMPRESA EMISORA S.A.", "3101538252"),
		"receiver":              party("CLIENTE RECEPTOR S.A.", "3101999999"),
		"orderLines": []any{
			map[string]any{
				"detail":       "Producto X",
				"unitaryPrice": 100,
				"quantity":     1,
				"tax":          map[string]any{"code": "01", "rateCode": "08", "rate": 13},
			},
		},
	}
}

// validateMap pasa el payload por JSON para reproducir lo que llega por HTTP.
func validateMap(t *testing.T, payload map[string]any) (*domhacienda.Document, error) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := domhacienda.Normalize(body)
	require.NoError(t, err)
	return domhacienda.Validate(raw)
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "se esperaba ValidationError, se obtuvo %v", err)
	assert.Equal(t, field, ve.Field)
	assert.NotEmpty(t, ve.Message)
}

// ──────────────────────────────────────────────────────────────────────────────
// Normalización
// ──────────────────────────────────────────────────────────────────────────────

func TestNormalize_EnvueltoYPlanoSonEquivalentes(t *testing.T) {
	flat, err := json.Marshal(validPayload())
	require.NoError(t, err)
	wrapped, err := json.Marshal(map[string]any{"document": validPayload()})
	require.NoError(t, err)

	rawFlat, err := domhacienda.Normalize(flat)
	require.NoError(t, err)
	rawWrapped, err := domhacienda.Normalize(wrapped)
	require.NoError(t, err)

	a, err := domhacienda.Validate(rawFlat)
	require.NoError(t, err)
	b, err := domhacienda.Validate(rawWrapped)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalize_CuerpoNoObjeto(t *testing.T) {
	for _, body := range []string{`[]`, `"texto"`, `{`, `{"document": 5}`} {
		_, err := domhacienda.Normalize([]byte(body))
		requireFieldError(t, err, "document")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación
// ──────────────────────────────────────────────────────────────────────────────

func TestValidate_DocumentoMinimoValido(t *testing.T) {
	doc, err := validateMap(t, validPayload())
	require.NoError(t, err)

	assert.Equal(t, "FacturaElectronica", doc.DocumentName)
	assert.Equal(t, "EMPRESA EMISORA S.A.", doc.Emitter.FullName)
	require.NotNil(t, doc.Receiver)
	assert.Equal(t, "CLIENTE RECEPTOR S.A.", doc.Receiver.FullName)
	require.Len(t, doc.OrderLines, 1)
	assert.Equal(t, "100", doc.OrderLines[0].UnitaryPrice.String())
	require.NotNil(t, doc.OrderLines[0].Tax)
	assert.Equal(t, "13", doc.OrderLines[0].Tax.Rate.String())
}

func TestValidate_CadaCampoObligatorio(t *testing.T) {
	for _, field := range domhacienda.RequiredFields {
		t.Run(field, func(t *testing.T) {
			p := validPayload()
			delete(p, field)
			_, err := validateMap(t, p)
			requireFieldError(t, err, field)

			p = validPayload()
			p[field] = "   "
			_, err = validateMap(t, p)
			requireFieldError(t, err, field)
		})
	}
}

func TestValidate_SecurityCode(t *testing.T) {
	for _, code := range []string{"1234567", "123456789", "1234567a", " 12345678 ", "12345678\n"} {
		p := validPayload()
		p["securityCode"] = code
		_, err := validateMap(t, p)
		requireFieldError(t, err, "securityCode")
	}

	p := validPayload()
	p["securityCode"] = "12345678"
	_, err := validateMap(t, p)
	assert.NoError(t, err)
}

func TestValidate_Emisor(t *testing.T) {
	p := validPayload()
	delete(p, "emitter")
	_, err := validateMap(t, p)
	requireFieldError(t, err, "emitter")

	p = validPayload()
	p["emitter"].(map[string]any)["fullName"] = ""
	_, err = validateMap(t, p)
	requireFieldError(t, err, "emitter.fullName")

	p = validPayload()
	p["emitter"].(map[string]any)["identifier"] = map[string]any{"type": "02"}
	_, err = validateMap(t, p)
	requireFieldError(t, err, "emitter.identifier")

	p = validPayload()
	delete(p["emitter"].(map[string]any), "activityCode")
	_, err = validateMap(t, p)
	requireFieldError(t, err, "emitter.activityCode")

	p = validPayload()
	delete(p["emitter"].(map[string]any)["location"].(map[string]any), "neighborhood")
	_, err = validateMap(t, p)
	requireFieldError(t, err, "emitter.location")
}

func TestValidate_ReceptorObligatorioSalvoTiquete(t *testing.T) {
	p := validPayload()
	delete(p, "receiver")
	_, err := validateMap(t, p)
	requireFieldError(t, err, "receiver")

	p = validPayload()
	p["receiver"].(map[string]any)["location"] = map[string]any{"province": "1"}
	_, err = validateMap(t, p)
	requireFieldError(t, err, "receiver.location")

	p = validPayload()
	p["documentName"] = "TiqueteElectronico"
	delete(p, "receiver")
	doc, err := validateMap(t, p)
	require.NoError(t, err, "el tiquete no exige receptor")
	assert.Nil(t, doc.Receiver)
	assert.True(t, doc.IsTicket())
}

func TestValidate_LineasDeDetalle(t *testing.T) {
	p := validPayload()
	p["orderLines"] = []any{}
	_, err := validateMap(t, p)
	requireFieldError(t, err, "orderLines")

	p = validPayload()
	delete(p, "orderLines")
	_, err = validateMap(t, p)
	requireFieldError(t, err, "orderLines")

	line := func(mutate func(map[string]any)) map[string]any {
		p := validPayload()
		mutate(p["orderLines"].([]any)[0].(map[string]any))
		return p
	}

	_, err = validateMap(t, line(func(l map[string]any) { l["detail"] = "" }))
	requireFieldError(t, err, "orderLines[0].detail")

	_, err = validateMap(t, line(func(l map[string]any) { l["unitaryPrice"] = "100" }))
	requireFieldError(t, err, "orderLines[0].unitaryPrice")

	_, err = validateMap(t, line(func(l map[string]any) { l["unitaryPrice"] = -1 }))
	requireFieldError(t, err, "orderLines[0].unitaryPrice")

	_, err = validateMap(t, line(func(l map[string]any) { l["quantity"] = "uno" }))
	requireFieldError(t, err, "orderLines[0].quantity")

	_, err = validateMap(t, line(func(l map[string]any) { l["tax"] = map[string]any{"code": "01", "rate": 13} }))
	requireFieldError(t, err, "orderLines[0].tax")

	doc, err := validateMap(t, line(func(l map[string]any) { delete(l, "quantity"); delete(l, "tax") }))
	require.NoError(t, err, "quantity y tax son opcionales")
	assert.Nil(t, doc.OrderLines[0].Quantity)
	assert.Equal(t, "1", doc.OrderLines[0].EffectiveQuantity().String())
}

func TestValidate_OpcionalesDebenSerTexto(t *testing.T) {
	p := validPayload()
	p["exchangeRate"] = 540.5
	_, err := validateMap(t, p)
	requireFieldError(t, err, "exchangeRate")

	p = validPayload()
	p["currencyCode"] = "USD"
	p["exchangeRate"] = "540.50"
	doc, err := validateMap(t, p)
	require.NoError(t, err)
	assert.Equal(t, "USD", doc.CurrencyCode)
}

func TestValidate_ConservaPrecisionDecimal(t *testing.T) {
	body := []byte(`{"documentName":"TiqueteElectronico","providerId":"P1","countryCode":"506",
		"securityCode":"12345678","activityCode":"930903","consecutiveIdentifier":"1","ceSituation":"1",
		"branch":"1","terminal":"1","conditionSale":"01","paymentMethod":"01",
		"emitter":{"fullName":"E","identifier":{"type":"01","id":"206920142"},"activityCode":"930903",
		"location":{"province":"1","canton":"1","district":"1","neighborhood":"1","details":"x"}},
		"orderLines":[{"detail":"Servicio","unitaryPrice":0.123456789,"quantity":2.5}]}`)
	raw, err := domhacienda.Normalize(body)
	require.NoError(t, err)
	doc, err := domhacienda.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "0.123456789", doc.OrderLines[0].UnitaryPrice.String(), "sin conversión a float")
	assert.Equal(t, "2.5", doc.OrderLines[0].Quantity.String())
}

func TestValidate_EsIdempotente(t *testing.T) {
	body, err := json.Marshal(validPayload())
	require.NoError(t, err)
	raw, err := domhacienda.Normalize(body)
	require.NoError(t, err)

	a, errA := domhacienda.Validate(raw)
	b, errB := domhacienda.Validate(raw)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b, "validar dos veces el mismo payload produce el mismo resultado")

	p := validPayload()
	delete(p, "branch")
	body, err = json.Marshal(p)
	require.NoError(t, err)
	raw, err = domhacienda.Normalize(body)
	require.NoError(t, err)
	_, errA = domhacienda.Validate(raw)
	_, errB = domhacienda.Validate(raw)
	assert.Equal(t, errA, errB)
}

func TestValidate_ClaveEcoOpcional(t *testing.T) {
	p := validPayload()
	p["clave"] = "50615032500206920142001000010100000000011123456785"
	doc, err := validateMap(t, p)
	require.NoError(t, err)
	assert.Equal(t, "50615032500206920142001000010100000000011123456785", doc.DocumentKey)
}
