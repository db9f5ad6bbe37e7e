package hacienda

import "crypto/tls"

// Signer firma el XML de un comprobante con XAdES-EPES (firma enveloped).
type Signer interface {
	// Sign recibe el comprobante sin firma y el certificado con llave privada, y
	// retorna el XML con ds:Signature como último hijo del elemento raíz.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
