package hacienda

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

// Namespaces auxiliares declarados en el elemento raíz (Anexos y Estructuras v4.4).
const (
	NsDs  = "http://www.w3.org/2000/09/xmldsig#"
	nsXsd = "http://www.w3.org/2001/XMLSchema"
	nsXsi = "http://www.w3.org/2001/XMLSchema-instance"
)

// BuildContext datos necesarios para serializar un comprobante validado.
type BuildContext struct {
	Document    *domhacienda.Document
	Key         string
	Consecutive string
	IssuedAt    time.Time
	ProviderID  string // ProveedorSistemas; si está vacío se usa providerId del documento
}

// XMLBuilderService construye el XML v4.4 del comprobante (sin firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el documento con el namespace por defecto del tipo de comprobante.
// Los elementos hijos no llevan prefijo para que hereden el namespace raíz.
func (s *XMLBuilderService) Build(ctx *BuildContext) ([]byte, error) {
	if ctx == nil || ctx.Document == nil {
		return nil, fmt.Errorf("hacienda: falta el documento en el contexto")
	}
	doc := ctx.Document
	ns, ok := pkghacienda.DocumentNamespaces[doc.DocumentName]
	if !ok {
		return nil, fmt.Errorf("hacienda: documentName %q sin esquema v4.4", doc.DocumentName)
	}
	if len(ctx.Key) != pkghacienda.KeyLength {
		return nil, fmt.Errorf("hacienda: clave de longitud %d", len(ctx.Key))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	w := &xmlWriter{enc: xml.NewEncoder(&buf)}
	w.enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: doc.DocumentName},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: ns},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:xsd"}, Value: nsXsd},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: nsXsi},
		},
	}
	w.token(root)

	providerID := ctx.ProviderID
	if providerID == "" {
		providerID = doc.ProviderID
	}

	w.elem("Clave", ctx.Key)
	w.elem("ProveedorSistemas", providerID)
	w.elem("CodigoActividadEmisor", doc.ActivityCode)
	if doc.Receiver != nil && doc.Receiver.ActivityCode != "" {
		w.elem("CodigoActividadReceptor", doc.Receiver.ActivityCode)
	}
	w.elem("NumeroConsecutivo", ctx.Consecutive)
	w.elem("FechaEmision", ctx.IssuedAt.Format(time.RFC3339))

	w.party("Emisor", &doc.Emitter)
	if doc.Receiver != nil {
		w.party("Receptor", doc.Receiver)
	}
	w.elem("CondicionVenta", doc.ConditionSale)

	summary := domhacienda.Totals(doc)
	w.detail(doc, summary)
	w.summary(doc, summary)
	w.reference(doc.ReferenceInfo)

	w.token(root.End())
	if w.err != nil {
		return nil, fmt.Errorf("hacienda: serializar xml: %w", w.err)
	}
	if err := w.enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// xmlWriter conserva el primer error del encoder para no chequear cada token.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(t)
}

func (w *xmlWriter) open(local string) {
	w.token(xml.StartElement{Name: xml.Name{Local: local}})
}

func (w *xmlWriter) close(local string) {
	w.token(xml.EndElement{Name: xml.Name{Local: local}})
}

func (w *xmlWriter) elem(local, value string) {
	w.open(local)
	w.token(xml.CharData(value))
	w.close(local)
}

// elemOpt omite el elemento cuando el valor está vacío.
func (w *xmlWriter) elemOpt(local, value string) {
	if value != "" {
		w.elem(local, value)
	}
}

func (w *xmlWriter) amount(local string, d decimal.Decimal) {
	w.elem(local, domhacienda.FormatAmount(d))
}

func (w *xmlWriter) party(local string, p *domhacienda.Party) {
	w.open(local)
	w.elem("Nombre", p.FullName)
	w.open("Identificacion")
	w.elem("Tipo", p.Identifier.Type)
	w.elem("Numero", p.Identifier.ID)
	w.close("Identificacion")
	w.elemOpt("NombreComercial", p.CommercialName)
	w.open("Ubicacion")
	w.elem("Provincia", p.Location.Province)
	w.elem("Canton", p.Location.Canton)
	w.elem("Distrito", p.Location.District)
	w.elem("Barrio", p.Location.Neighborhood)
	w.elem("OtrasSenas", p.Location.Details)
	w.close("Ubicacion")
	if p.Phone != nil {
		w.open("Telefono")
		w.elem("CodigoPais", p.Phone.CountryCode)
		w.elem("NumTelefono", p.Phone.Number)
		w.close("Telefono")
	}
	w.elemOpt("CorreoElectronico", p.Email)
	w.close(local)
}

func (w *xmlWriter) detail(doc *domhacienda.Document, s domhacienda.Summary) {
	w.open("DetalleServicio")
	for i, line := range doc.OrderLines {
		lt := s.Lines[i]
		w.open("LineaDetalle")
		w.elem("NumeroLinea", strconv.Itoa(lt.Number))
		w.elemOpt("CodigoCABYS", line.Code)
		w.amount("Cantidad", lt.Quantity)
		w.elem("UnidadMedida", line.Unit())
		w.elem("Detalle", line.Detail)
		w.amount("PrecioUnitario", line.UnitaryPrice)
		w.amount("MontoTotal", lt.Amount)
		w.amount("SubTotal", lt.Subtotal)
		if line.Tax != nil {
			w.amount("BaseImponible", lt.Subtotal)
			w.open("Impuesto")
			w.elem("Codigo", line.Tax.Code)
			w.elem("CodigoTarifaIVA", line.Tax.RateCode)
			w.elem("Tarifa", domhacienda.FormatRate(line.Tax.Rate))
			w.amount("Monto", lt.TaxAmount)
			w.close("Impuesto")
			w.amount("ImpuestoNeto", lt.TaxAmount)
		}
		w.amount("MontoTotalLinea", lt.Total)
		w.close("LineaDetalle")
	}
	w.close("DetalleServicio")
}

func (w *xmlWriter) summary(doc *domhacienda.Document, s domhacienda.Summary) {
	w.open("ResumenFactura")
	if doc.CurrencyCode != "" {
		w.open("CodigoTipoMoneda")
		w.elem("CodigoMoneda", doc.CurrencyCode)
		w.elem("TipoCambio", doc.ExchangeRate)
		w.close("CodigoTipoMoneda")
	}
	w.amount("TotalServGravados", s.TotalServGravados)
	w.amount("TotalServExentos", s.TotalServExentos)
	w.amount("TotalMercanciasGravadas", s.TotalMercanciasGravadas)
	w.amount("TotalMercanciasExentas", s.TotalMercanciasExentas)
	w.amount("TotalGravado", s.TotalGravado)
	w.amount("TotalExento", s.TotalExento)
	w.amount("TotalVenta", s.TotalVenta)
	w.amount("TotalDescuentos", s.TotalDescuentos)
	w.amount("TotalVentaNeta", s.TotalVentaNeta)
	w.amount("TotalImpuesto", s.TotalImpuesto)
	w.open("MedioPago")
	w.elem("TipoMedioPago", doc.PaymentMethod)
	w.amount("TotalMedioPago", s.TotalComprobante)
	w.close("MedioPago")
	w.amount("TotalComprobante", s.TotalComprobante)
	w.close("ResumenFactura")
}

func (w *xmlWriter) reference(ref *domhacienda.ReferenceInfo) {
	if ref == nil {
		return
	}
	w.open("InformacionReferencia")
	w.elem("TipoDocIR", ref.DocumentType)
	w.elem("Numero", ref.Number)
	w.elem("FechaEmisionIR", ref.IssueDate)
	w.elem("Codigo", ref.Code)
	w.elem("Razon", ref.Reason)
	w.close("InformacionReferencia")
}

// BuildPlaceholder XML determinista sin firma para desarrollo y pruebas. Contiene la clave,
// el nombre del emisor y el del receptor; los valores se escapan.
func BuildPlaceholder(rootName, key, emitterName, receiverName string) ([]byte, error) {
	if rootName == "" {
		rootName = pkghacienda.DocNameFactura
	}
	var buf bytes.Buffer
	w := &xmlWriter{enc: xml.NewEncoder(&buf)}
	w.open(rootName)
	w.elem("Clave", key)
	w.elem("Emisor", emitterName)
	w.elem("Receptor", receiverName)
	w.close(rootName)
	if w.err == nil {
		w.err = w.enc.Flush()
	}
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}
