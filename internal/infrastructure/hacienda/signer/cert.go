// Carga e inspección de certificados desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

var costaRica = time.FixedZone("America/Costa_Rica", -6*60*60)

// CertificateInfo metadatos extraídos del certificado X.509.
type CertificateInfo struct {
	SubjectCN          string
	IssuerCN           string
	IssuerOrg          string
	SerialNumber       string
	ValidFrom          time.Time
	ValidTo            time.Time
	FingerprintSHA1    string
	FingerprintSHA256  string
	KeyUsage           []string
	HasDigitalSig      bool
	HasNonRepudiation  bool
	FromAuthorizedCA   bool
	HaciendaCompatible bool
}

// DecodeP12 decodifica el contenido de un .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func DecodeP12(data []byte, password string) (tls.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devuelve un solo certificado; para Hacienda basta el certificado hoja.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromFile carga desde .p12/.pfx, o desde PEM (certificado y llave combinados) para otras extensiones.
func LoadFromFile(path, password string) (tls.Certificate, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".p12" || ext == ".pfx" {
		data, err := os.ReadFile(path)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
		}
		return DecodeP12(data, password)
	}
	cert, err := tls.LoadX509KeyPair(path, path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		cert.Leaf, _ = x509.ParseCertificate(cert.Certificate[0])
	}
	return cert, nil
}

// Inspect extrae vigencia, huellas, usos de llave y compatibilidad con Hacienda
// (digitalSignature + nonRepudiation emitido por una CA autorizada). No evalúa la vigencia.
func Inspect(cert *x509.Certificate) CertificateInfo {
	sha1Sum := sha1.Sum(cert.Raw)
	sha256Sum := sha256.Sum256(cert.Raw)
	info := CertificateInfo{
		SubjectCN:         cert.Subject.CommonName,
		IssuerCN:          cert.Issuer.CommonName,
		IssuerOrg:         strings.Join(cert.Issuer.Organization, ", "),
		SerialNumber:      cert.SerialNumber.Text(16),
		ValidFrom:         cert.NotBefore,
		ValidTo:           cert.NotAfter,
		FingerprintSHA1:   hex.EncodeToString(sha1Sum[:]),
		FingerprintSHA256: hex.EncodeToString(sha256Sum[:]),
		KeyUsage:          keyUsageNames(cert.KeyUsage),
		HasDigitalSig:     cert.KeyUsage&x509.KeyUsageDigitalSignature != 0,
		HasNonRepudiation: cert.KeyUsage&x509.KeyUsageContentCommitment != 0,
		FromAuthorizedCA:  isAuthorizedCA(cert.Issuer.Organization),
	}
	info.HaciendaCompatible = info.HasDigitalSig && info.HasNonRepudiation && info.FromAuthorizedCA
	return info
}

func isAuthorizedCA(orgs []string) bool {
	for _, org := range orgs {
		o := strings.ToLower(org)
		for _, ca := range AuthorizedCAs {
			if strings.Contains(o, strings.ToLower(ca)) {
				return true
			}
		}
	}
	return false
}

func keyUsageNames(ku x509.KeyUsage) []string {
	names := []struct {
		bit  x509.KeyUsage
		name string
	}{
		{x509.KeyUsageDigitalSignature, "digitalSignature"},
		{x509.KeyUsageContentCommitment, "nonRepudiation"},
		{x509.KeyUsageKeyEncipherment, "keyEncipherment"},
		{x509.KeyUsageDataEncipherment, "dataEncipherment"},
		{x509.KeyUsageKeyAgreement, "keyAgreement"},
		{x509.KeyUsageCertSign, "keyCertSign"},
		{x509.KeyUsageCRLSign, "cRLSign"},
	}
	var out []string
	for _, n := range names {
		if ku&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// CertDigestAndIssuerSerial devuelve el digest SHA-256 del certificado (Base64), el emisor y el serial decimal para XAdES.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64 string, issuerName string, serial string) {
	h := sha256.Sum256(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}
