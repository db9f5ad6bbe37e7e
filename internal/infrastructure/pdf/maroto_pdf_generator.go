// Package pdf genera la representación gráfica del comprobante electrónico de Hacienda.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Emisor + cédula      │  Tipo + consecutivo + fecha │
//	│  EMISOR: ubicación / teléfono / correo                       │
//	│  RECEPTOR: nombre + identificación (se omite en tiquetes)    │
//	│  TABLA: Cant | Detalle | P.Unit | IVA | Total línea          │
//	│  TOTALES: venta / impuesto / total comprobante               │
//	│  FOOTER: clave partida + QR de la clave + estado             │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appbilling "github.com/jhoicas/hacienda-api/internal/application/billing"
	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 43, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// documentTitles título impreso por tipo de comprobante.
var documentTitles = map[string]string{
	"FacturaElectronica":            "FACTURA ELECTRÓNICA",
	"TiqueteElectronico":            "TIQUETE ELECTRÓNICO",
	"NotaCreditoElectronica":        "NOTA DE CRÉDITO ELECTRÓNICA",
	"NotaDebitoElectronica":         "NOTA DE DÉBITO ELECTRÓNICA",
	"FacturaElectronicaCompra":      "FACTURA ELECTRÓNICA DE COMPRA",
	"FacturaElectronicaExportacion": "FACTURA ELECTRÓNICA DE EXPORTACIÓN",
}

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.PDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct{}

var _ appbilling.PDFGenerator = (*MarotoPDFGenerator)(nil)

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// Generate arma el PDF del comprobante y devuelve sus bytes.
func (g *MarotoPDFGenerator) Generate(_ context.Context, in appbilling.PDFInput) ([]byte, error) {
	if in.Document == nil {
		return nil, fmt.Errorf("pdf: falta el documento")
	}
	doc := in.Document
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title(doc.DocumentName), true).
		WithAuthor(doc.Emitter.FullName, true).
		Build()

	m := maroto.New(cfg)
	summary := domhacienda.Totals(doc)

	m.AddRows(headerRow(in))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(partyRow("EMISOR", &doc.Emitter))
	if doc.Receiver != nil {
		m.AddRows(partyRow("RECEPTOR", doc.Receiver))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(doc, summary)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc.CurrencyCode, summary))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(in)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(in appbilling.PDFInput) core.Row {
	doc := in.Document
	return row.New(18).Add(
		col.New(7).Add(
			text.New(doc.Emitter.FullName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Cédula: "+doc.Emitter.Identifier.ID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(title(doc.DocumentName), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(in.Consecutive, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+in.IssuedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func partyRow(label string, p *domhacienda.Party) core.Row {
	contact := []string{"Ubicación: " + nonEmpty(p.Location.Details, "—")}
	if p.Phone != nil {
		contact = append(contact, "Tel: "+p.Phone.Number)
	}
	if p.Email != "" {
		contact = append(contact, "Correo: "+p.Email)
	}
	return row.New(16).Add(
		col.New(12).Add(
			text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(p.FullName, props.Text{Style: fontstyle.Bold, Size: 10, Top: 5}),
			text.New(fmt.Sprintf("Identificación %s: %s   |   %s",
				p.Identifier.Type, p.Identifier.ID, strings.Join(contact, "   |   ")),
				props.Text{Size: 8, Top: 11, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Detalle", 5, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("IVA%", 1, align.Center),
		h("Total línea", 3, align.Right),
	)
}

func tableDetailRows(doc *domhacienda.Document, s domhacienda.Summary) []core.Row {
	result := make([]core.Row, 0, len(doc.OrderLines))
	for i, l := range doc.OrderLines {
		lt := s.Lines[i]
		rate := "—"
		if l.Tax != nil {
			rate = domhacienda.FormatRate(l.Tax.Rate)
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(lt.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(l.Detail, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatMoney(l.UnitaryPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(rate, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(3).Add(text.New(formatMoney(lt.Total), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(currency string, s domhacienda.Summary) core.Row {
	if currency == "" {
		currency = "CRC"
	}
	label := func(v string, bold bool) core.Component {
		p := props.Text{Size: 9, Align: align.Right, Right: 2, Style: fontstyle.Bold}
		if bold {
			p.Size, p.Color = 10, colorPrimary
		}
		return text.New(v, p)
	}
	value := func(d decimal.Decimal, bold bool) core.Component {
		p := props.Text{Size: 9, Align: align.Right, Right: 1}
		if bold {
			p.Size, p.Color, p.Style = 10, colorPrimary, fontstyle.Bold
		}
		return text.New(currency+" "+formatMoney(d), p)
	}
	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(label("Total venta:", false), label("Impuesto:", false), label("TOTAL:", true)),
		col.New(3).Add(value(s.TotalVentaNeta, false), value(s.TotalImpuesto, false), value(s.TotalComprobante, true)),
		col.New(3),
	)
}

// footerRows clave en dos trozos + QR con la clave para consulta en Hacienda.
func footerRows(in appbilling.PDFInput) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("CLAVE NUMÉRICA", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	for _, chunk := range splitEvery(in.Key, 25) {
		rows = append(rows, row.New(4).Add(col.New(12).Add(
			text.New(chunk, props.Text{Size: 7, Color: colorGray, Top: 0.5, Left: 2}),
		)))
	}
	rows = append(rows, row.New(3))
	if in.Key != "" {
		rows = append(rows, row.New(45).Add(
			col.New(4).Add(code.NewQr(in.Key, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("Estado ante Hacienda: "+nonEmpty(in.Status, "pendiente"), props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Emitida conforme a la Resolución DGT-R-033-2019\ny la versión 4.4 de los comprobantes electrónicos.", props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 18, Left: 3, Color: colorPrimary,
				}),
			),
		))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func title(documentName string) string {
	if t, ok := documentTitles[documentName]; ok {
		return t
	}
	return "COMPROBANTE ELECTRÓNICO"
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney dos decimales con separador de miles: 1234567.5 → "1,234,567.50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	out := string(buf) + frac
	if neg {
		out = "-" + out
	}
	return out
}

func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
