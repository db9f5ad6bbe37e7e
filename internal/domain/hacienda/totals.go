package hacienda

import "github.com/shopspring/decimal"

// AmountScale decimales de montos; RateScale decimales de tarifas.
const (
	AmountScale = 5
	RateScale   = 2
)

var hundred = decimal.NewFromInt(100)

// LineTotals montos calculados de una línea.
type LineTotals struct {
	Number    int
	Quantity  decimal.Decimal
	Amount    decimal.Decimal // MontoTotal = precio × cantidad
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal // MontoTotalLinea
	Taxed     bool
	Service   bool
}

// Summary totales del ResumenFactura.
type Summary struct {
	Lines                   []LineTotals
	TotalServGravados       decimal.Decimal
	TotalServExentos        decimal.Decimal
	TotalMercanciasGravadas decimal.Decimal
	TotalMercanciasExentas  decimal.Decimal
	TotalGravado            decimal.Decimal
	TotalExento             decimal.Decimal
	TotalVenta              decimal.Decimal
	TotalDescuentos         decimal.Decimal
	TotalVentaNeta          decimal.Decimal
	TotalImpuesto           decimal.Decimal
	TotalComprobante        decimal.Decimal
}

// Totals calcula montos por línea y el resumen. Los valores calculados se redondean
// a 5 decimales; los valores de entrada nunca se tocan.
func Totals(doc *Document) Summary {
	var s Summary
	for i, line := range doc.OrderLines {
		qty := line.EffectiveQuantity()
		amount := line.UnitaryPrice.Mul(qty).Round(AmountScale)
		lt := LineTotals{
			Number:   i + 1,
			Quantity: qty,
			Amount:   amount,
			Subtotal: amount,
			Service:  line.IsService(),
		}
		if line.Tax != nil && line.Tax.Rate.IsPositive() {
			lt.Taxed = true
			lt.TaxAmount = amount.Mul(line.Tax.Rate).Div(hundred).Round(AmountScale)
		}
		lt.Total = lt.Subtotal.Add(lt.TaxAmount)

		switch {
		case lt.Service && lt.Taxed:
			s.TotalServGravados = s.TotalServGravados.Add(amount)
		case lt.Service:
			s.TotalServExentos = s.TotalServExentos.Add(amount)
		case lt.Taxed:
			s.TotalMercanciasGravadas = s.TotalMercanciasGravadas.Add(amount)
		default:
			s.TotalMercanciasExentas = s.TotalMercanciasExentas.Add(amount)
		}
		s.TotalImpuesto = s.TotalImpuesto.Add(lt.TaxAmount)
		s.Lines = append(s.Lines, lt)
	}
	s.TotalGravado = s.TotalServGravados.Add(s.TotalMercanciasGravadas)
	s.TotalExento = s.TotalServExentos.Add(s.TotalMercanciasExentas)
	s.TotalVenta = s.TotalGravado.Add(s.TotalExento)
	s.TotalVentaNeta = s.TotalVenta.Sub(s.TotalDescuentos)
	s.TotalComprobante = s.TotalVentaNeta.Add(s.TotalImpuesto)
	return s
}

// FormatAmount imprime un monto recibido: 5 decimales fijos si caben, o todos los
// dígitos originales si trae más (nunca redondea la entrada).
func FormatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -AmountScale {
		return d.StringFixed(AmountScale)
	}
	return d.String()
}

// FormatRate imprime una tarifa con 2 decimales sin perder precisión recibida.
func FormatRate(d decimal.Decimal) string {
	if d.Exponent() >= -RateScale {
		return d.StringFixed(RateScale)
	}
	return d.String()
}
