package hacienda

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

// transitions grafo de estados permitido. error no tiene salida: el reenvío crea un registro nuevo.
var transitions = map[string][]string{
	entity.DocumentStatusPending: {entity.DocumentStatusSent},
	entity.DocumentStatusSent:    {entity.DocumentStatusAccepted, entity.DocumentStatusRejected, entity.DocumentStatusError},
}

// CanTransition indica si from → to es legal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition devuelve ErrOrdering si se intenta cerrar un comprobante que nunca se
// envió y ErrInvalidTransition para cualquier otro salto ilegal.
func CheckTransition(from, to string) error {
	if CanTransition(from, to) {
		return nil
	}
	if from == entity.DocumentStatusPending && to != entity.DocumentStatusSent {
		return fmt.Errorf("%w: estado actual %s", domain.ErrOrdering, from)
	}
	return fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, from, to)
}

// Verdict respuesta definitiva de Hacienda sobre un comprobante enviado.
type Verdict struct {
	RemoteStatus string          // aceptado | rechazado | error
	Message      string          // detalle legible (MensajeHacienda)
	Raw          json.RawMessage // cuerpo completo para auditoría
}

// LocalStatus traduce el ind-estado remoto al estado local.
func (v Verdict) LocalStatus() (string, error) {
	switch v.RemoteStatus {
	case pkghacienda.RemoteStatusAceptado:
		return entity.DocumentStatusAccepted, nil
	case pkghacienda.RemoteStatusRechazado:
		return entity.DocumentStatusRejected, nil
	case pkghacienda.RemoteStatusError:
		return entity.DocumentStatusError, nil
	}
	return "", fmt.Errorf("%w: ind-estado %q no es definitivo", domain.ErrInvalidTransition, v.RemoteStatus)
}

// PollResult resultado de una consulta de estado. Es informativo.
type PollResult struct {
	RemoteStatus string
	Raw          json.RawMessage
	PolledAt     time.Time
}

// IsTerminal Hacienda ya emitió veredicto.
func (p PollResult) IsTerminal() bool {
	return pkghacienda.IsTerminalRemoteStatus(p.RemoteStatus)
}

// Verdict convierte una consulta terminal en veredicto para la reconciliación.
func (p PollResult) Verdict() Verdict {
	return Verdict{RemoteStatus: p.RemoteStatus, Raw: p.Raw}
}
