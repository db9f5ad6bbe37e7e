// Servicio de firma digital XAdES-EPES para comprobantes electrónicos de Hacienda.
// Inyecta <ds:Signature> como último hijo del elemento raíz (firma enveloped).

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

const (
	signatureID       = "xmldsig-comprobante"
	signedPropsID     = signatureID + "-signedprops"
	documentRefID     = signatureID + "-ref0"
	signatureValueID  = signatureID + "-sigvalue"
	signingTimeLayout = "2006-01-02T15:04:05-07:00"
)

// DigitalSignatureService implementa la firma XAdES-EPES e inyecta el nodo en el XML.
type DigitalSignatureService struct {
	policyHash string // SHA-256 base64 del documento de política; vacío = no se emite SigPolicyHash
	exclusive  bool
	now        func() time.Time
}

// NewDigitalSignatureService crea el servicio con C14N 1.0 inclusivo.
func NewDigitalSignatureService(policyHash string) *DigitalSignatureService {
	return &DigitalSignatureService{policyHash: policyHash, now: time.Now}
}

// WithClock reemplaza el reloj usado para SigningTime.
func (s *DigitalSignatureService) WithClock(now func() time.Time) *DigitalSignatureService {
	s.now = now
	return s
}

// WithExclusiveC14N declara y aplica Exclusive C14N en SignedInfo y en ambas referencias.
func (s *DigitalSignatureService) WithExclusiveC14N() *DigitalSignatureService {
	s.exclusive = true
	return s
}

// CanonicalizationAlgorithm URI declarado en CanonicalizationMethod y en los Transform.
func (s *DigitalSignatureService) CanonicalizationAlgorithm() string {
	if s.exclusive {
		return AlgExcC14N
	}
	return AlgC14N
}

// Sign implementa pkg/hacienda.Signer.
// SignedProperties y SignedInfo se canonicalizan ya insertos bajo la raíz, con los
// namespaces que heredan de ella.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("hacienda: XML vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("hacienda: el certificado debe incluir llave privada RSA")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("hacienda: certificado sin cadena X.509")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("hacienda: parsear certificado: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("hacienda: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("hacienda: documento sin raíz")
	}
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" {
			return nil, fmt.Errorf("hacienda: el documento ya está firmado")
		}
	}

	// 1) Digest del documento sin firma (Reference URI="" + enveloped)
	canonicalDoc, err := s.canonical(root)
	if err != nil {
		return nil, fmt.Errorf("hacienda: canonicalizar documento: %w", err)
	}

	// 2) Signature con digest de SignedProperties y SignatureValue vacíos, ya inserta
	certDigestB64, issuerName, serial := CertDigestAndIssuerSerial(x509Cert)
	signingTime := s.now().In(costaRica).Format(signingTimeLayout)
	signedProps := s.buildSignedProperties(signingTime, certDigestB64, issuerName, serial)
	signedInfo := s.buildSignedInfo(digestB64(canonicalDoc))
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(buildFullSignature(signedInfo, certB64, signedProps)); err != nil {
		return nil, fmt.Errorf("hacienda: parsear Signature: %w", err)
	}
	sig := sigDoc.Root()
	root.AddChild(sig)

	propsEl := sig.FindElement(".//SignedProperties")
	infoEl := sig.SelectElement("ds:SignedInfo")
	valueEl := sig.SelectElement("ds:SignatureValue")
	propsDigestEl := referenceDigest(infoEl, "#"+signedPropsID)
	if propsEl == nil || valueEl == nil || propsDigestEl == nil {
		return nil, fmt.Errorf("hacienda: estructura de Signature incompleta")
	}

	// 3) SignedProperties en contexto
	canonicalProps, err := s.canonical(propsEl)
	if err != nil {
		return nil, fmt.Errorf("hacienda: canonicalizar SignedProperties: %w", err)
	}
	propsDigestEl.SetText(digestB64(canonicalProps))

	// 4) SignedInfo en contexto, firma RSA-SHA256
	canonicalInfo, err := s.canonical(infoEl)
	if err != nil {
		return nil, fmt.Errorf("hacienda: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("hacienda: firmar SignedInfo: %w", err)
	}
	valueEl.SetText(base64.StdEncoding.EncodeToString(signatureValue))

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("hacienda: serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}

// canonical canonicaliza el elemento como parte de su documento.
func (s *DigitalSignatureService) canonical(el *etree.Element) ([]byte, error) {
	inherited := InScopeNamespaces(el.Parent())
	if !s.exclusive {
		return CanonicalizeInclusive(el, inherited), nil
	}
	// Exclusive C14N solo emite los namespaces usados; se declaran los heredados en una
	// copia para que los prefijos definidos en ancestros sigan resolviendo.
	apex := el.Copy()
	declared := map[string]bool{}
	for _, a := range apex.Attr {
		if prefix, ok := namespaceDecl(a); ok {
			declared[prefix] = true
		}
	}
	for prefix, uri := range inherited {
		switch {
		case declared[prefix]:
		case prefix == "":
			apex.CreateAttr("xmlns", uri)
		default:
			apex.CreateAttr("xmlns:"+prefix, uri)
		}
	}
	tmp := etree.NewDocument()
	tmp.SetRoot(apex)
	raw, err := tmp.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return CanonicalizeExclusive(raw)
}

func referenceDigest(signedInfo *etree.Element, uri string) *etree.Element {
	if signedInfo == nil {
		return nil
	}
	for _, ref := range signedInfo.SelectElements("ds:Reference") {
		if ref.SelectAttrValue("URI", "") == uri {
			return ref.SelectElement("ds:DigestValue")
		}
	}
	return nil
}

func digestB64(data []byte) string {
	h := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(h[:])
}

func (s *DigitalSignatureService) buildSignedProperties(signingTime, certDigestB64, issuerName, serial string) string {
	var sb strings.Builder
	sb.WriteString(`<xades:SignedProperties xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `" Id="` + signedPropsID + `">`)
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + signingTime + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert><xades:CertDigest><ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + certDigestB64 + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuerName) + `</ds:X509IssuerName><ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></xades:IssuerSerial></xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`<xades:SignaturePolicyIdentifier><xades:SignaturePolicyId><xades:SigPolicyId><xades:Identifier>` + escapeXML(SignaturePolicyURL) + `</xades:Identifier></xades:SigPolicyId>`)
	if s.policyHash != "" {
		sb.WriteString(`<xades:SigPolicyHash><ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod><ds:DigestValue>` + s.policyHash + `</ds:DigestValue></xades:SigPolicyHash>`)
	}
	sb.WriteString(`</xades:SignaturePolicyId></xades:SignaturePolicyIdentifier>`)
	sb.WriteString(`</xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SignedDataObjectProperties><xades:DataObjectFormat ObjectReference="#` + documentRefID + `"><xades:MimeType>text/xml</xades:MimeType><xades:Encoding>UTF-8</xades:Encoding></xades:DataObjectFormat></xades:SignedDataObjectProperties>`)
	sb.WriteString(`</xades:SignedProperties>`)
	return sb.String()
}

func (s *DigitalSignatureService) buildSignedInfo(docDigestB64 string) string {
	alg := s.CanonicalizationAlgorithm()
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + alg + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"></ds:SignatureMethod>`)
	sb.WriteString(`<ds:Reference Id="` + documentRefID + `" URI="">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"></ds:Transform>`)
	sb.WriteString(`<ds:Transform Algorithm="` + alg + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`<ds:Reference Type="` + TypeSignedProps + `" URI="#` + signedPropsID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + alg + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue></ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildFullSignature(signedInfoXML, certB64, signedProps string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" Id="` + signatureID + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue Id="` + signatureValueID + `"></ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`<ds:Object><xades:QualifyingProperties xmlns:xades="` + NamespaceXAdES + `" Target="#` + signatureID + `">`)
	sb.WriteString(signedProps)
	sb.WriteString(`</xades:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

var _ pkghacienda.Signer = (*DigitalSignatureService)(nil)
