// Package secrets cifra en reposo el material sensible de los certificados
// (contenido .p12 y contraseña) con XChaCha20-Poly1305 y una llave derivada por HKDF.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrDecrypt el texto cifrado no corresponde a la llave o fue alterado.
var ErrDecrypt = errors.New("secrets: no se pudo descifrar")

const hkdfInfo = "hacienda-api/certificates/v1"

// Box cifra y descifra con una llave de servicio.
type Box struct {
	key []byte
}

// NewBox deriva la llave simétrica a partir de CERT_ENCRYPTION_KEY.
func NewBox(serviceKey string) (*Box, error) {
	if len(serviceKey) < 16 {
		return nil, fmt.Errorf("secrets: la llave de servicio debe tener al menos 16 caracteres")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(serviceKey), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secrets: derivar llave: %w", err)
	}
	return &Box{key: key}, nil
}

// Seal cifra plaintext. additional liga el cifrado a un contexto (p. ej. el ID del certificado).
// Formato: nonce(24) || ciphertext+tag.
func (b *Box) Seal(plaintext, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secrets: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open descifra lo producido por Seal con el mismo additional.
func (b *Box) Open(sealed, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	out, err := aead.Open(nil, nonce, ct, additional)
	if err != nil {
		return nil, ErrDecrypt
	}
	return out, nil
}

// Zero sobrescribe un buffer con material descifrado.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
