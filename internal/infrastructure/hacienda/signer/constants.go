// Constantes para firma XAdES-EPES de comprobantes electrónicos (Hacienda, Costa Rica).

package signer

// Política de firma vigente para comprobantes v4.4.
const (
	SignaturePolicyURL = "https://cdn.comprobanteselectronicos.go.cr/xml-schemas/Resoluci%C3%B3n_General_sobre_disposiciones_t%C3%A9cnicas_comprobantes_electr%C3%B3nicos_para_efectos_tributarios.pdf"
)

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES     = "http://uri.etsi.org/01903/v1.3.2#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgExcC14N         = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	TypeSignedProps    = "http://uri.etsi.org/01903#SignedProperties"
)

// AuthorizedCAs organizaciones emisoras aceptadas por Hacienda (coincidencia parcial, sin mayúsculas).
var AuthorizedCAs = []string{
	"Camerfirma",
	"Firma Digital",
	"Gobierno Digital",
	"Ministerio de Hacienda",
}
