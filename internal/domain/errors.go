package domain

import (
	"errors"
	"fmt"

	"github.com/jhoicas/hacienda-api/pkg/hacienda"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")

	// Ciclo de vida del comprobante.
	ErrOrdering            = errors.New("el comprobante no ha sido enviado a Hacienda")
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrNoActiveCertificate = errors.New("no hay certificado activo para el emisor")
)

// KeyFormatError se define junto al generador de clave; se re-exporta para la capa HTTP.
type KeyFormatError = hacienda.KeyFormatError

// ValidationError entrada del cliente mal formada. Nunca se reintenta.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError atajo para construir el error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SignatureError la firma del comprobante falló (certificado, llave o canonicalización).
type SignatureError struct {
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("firma: %s: %v", e.Reason, e.Err)
	}
	return "firma: " + e.Reason
}

func (e *SignatureError) Unwrap() error { return e.Err }

// CertificateError el certificado almacenado es inválido, está vencido o no es compatible.
type CertificateError struct {
	Reason string
}

func (e *CertificateError) Error() string {
	return "certificado: " + e.Reason
}

// HaciendaError fallo del servicio remoto (red, timeout o respuesta no exitosa).
// Retryable indica al llamador que puede reintentar con backoff; el núcleo nunca reintenta solo.
type HaciendaError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Body       string
	Err        error
}

func (e *HaciendaError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("hacienda %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("hacienda %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("hacienda %s: HTTP %d", e.Op, e.StatusCode)
	}
}

func (e *HaciendaError) Unwrap() error { return e.Err }
