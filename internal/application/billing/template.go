package billing

import pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"

// Template estructura de ejemplo que acepta validate-and-emit.
func Template() map[string]any {
	party := func(name, id, activity string) map[string]any {
		return map[string]any{
			"fullName":     name,
			"identifier":   map[string]any{"type": "02", "id": id},
			"activityCode": activity,
			"location": map[string]any{
				"province": "1", "canton": "01", "district": "01", "neighborhood": "01",
				"details": "Dirección exacta",
			},
			"email": "correo@ejemplo.cr",
		}
	}
	return map[string]any{
		"document": map[string]any{
			"documentName":          pkghacienda.DocNameFactura,
			"providerId":            "3101000000",
			"countryCode":           pkghacienda.CountryCode,
			"securityCode":          "12345678",
			"activityCode":          "000000",
			"consecutiveIdentifier": "1",
			"ceSituation":           pkghacienda.SituationNormal,
			"branch":                "1",
			"terminal":              "1",
			"conditionSale":         "01",
			"paymentMethod":         "01",
			"currencyCode":          "CRC",
			"emitter":               party("EMISOR S.A.", "3101000000", "000000"),
			"receiver":              party("RECEPTOR S.A.", "3101999999", "000000"),
			"orderLines": []any{
				map[string]any{
					"detail":       "Producto",
					"unitaryPrice": 1000,
					"quantity":     1,
					"measureUnit":  pkghacienda.UnitUnidad,
					"tax":          map[string]any{"code": "01", "rateCode": "08", "rate": 13},
				},
			},
		},
	}
}
