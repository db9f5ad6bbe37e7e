package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/metrics"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// Tracker mantiene el ciclo de vida pending → sent → accepted | rejected | error.
// Cada cambio de estado y su evento de auditoría se escriben en la misma transacción;
// los cambios usan compare-and-set sobre el estado leído.
type Tracker struct {
	docs    repository.DocumentRepository
	tx      DocumentTxRunner
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTracker construye el tracker. m puede ser nil.
func NewTracker(docs repository.DocumentRepository, tx DocumentTxRunner, log *logger.Logger, m *metrics.Metrics) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{docs: docs, tx: tx, log: log.WithComponent("tracker"), metrics: m, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Get registro más reciente de la clave; domain.ErrNotFound si no existe.
func (t *Tracker) Get(ctx context.Context, key string) (*entity.Document, error) {
	d, err := t.docs.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("comprobante %s: %w", key, domain.ErrNotFound)
	}
	return d, nil
}

// Register inserta el registro en pending. Una clave viva repetida devuelve domain.ErrDuplicate.
func (t *Tracker) Register(ctx context.Context, doc *entity.Document) error {
	now := t.now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Status = entity.DocumentStatusPending
	doc.CreatedAt, doc.UpdatedAt = now, now
	err := t.tx.RunDocuments(ctx, func(docs repository.DocumentRepository) error {
		if err := docs.Create(ctx, doc); err != nil {
			return err
		}
		return docs.AppendEvent(ctx, t.event(doc, entity.EventRegistered, "", entity.DocumentStatusPending, nil))
	})
	if err != nil {
		return err
	}
	t.log.WithDocument(doc.DocumentKey).Info().Str("status", doc.Status).Msg("comprobante registrado")
	return nil
}

// RecordSubmission pending → sent. Guarda la hora de envío y el XML enviado.
func (t *Tracker) RecordSubmission(ctx context.Context, key, signedXML string) (*entity.Document, error) {
	return t.transition(ctx, key, entity.EventSubmitted, func(d *entity.Document, now time.Time) (string, any, error) {
		if err := domhacienda.CheckTransition(d.Status, entity.DocumentStatusSent); err != nil {
			return "", nil, err
		}
		d.SubmittedAt = &now
		if signedXML != "" {
			d.SignedXML = signedXML
		}
		return entity.DocumentStatusSent, nil, nil
	})
}

// RecordResponse sent → accepted | rejected | error según el veredicto de Hacienda.
// Sin envío previo devuelve domain.ErrOrdering.
func (t *Tracker) RecordResponse(ctx context.Context, key string, v domhacienda.Verdict) (*entity.Document, error) {
	return t.transition(ctx, key, entity.EventResponse, func(d *entity.Document, now time.Time) (string, any, error) {
		if !d.WasSubmitted() {
			return "", nil, fmt.Errorf("%w: clave %s", domain.ErrOrdering, key)
		}
		to, err := v.LocalStatus()
		if err != nil {
			return "", nil, err
		}
		if err := domhacienda.CheckTransition(d.Status, to); err != nil {
			return "", nil, err
		}
		d.RespondedAt = &now
		d.RemoteStatus = v.RemoteStatus
		d.Response = v.Raw
		if len(d.Response) == 0 {
			d.Response, _ = json.Marshal(map[string]string{"ind-estado": v.RemoteStatus, "mensaje": v.Message})
		}
		return to, map[string]string{"ind-estado": v.RemoteStatus, "mensaje": v.Message}, nil
	})
}

// RecordPoll guarda el resultado de una consulta sin cambiar el estado local.
// Sin envío previo devuelve domain.ErrOrdering.
func (t *Tracker) RecordPoll(ctx context.Context, key string, p domhacienda.PollResult) (*entity.Document, error) {
	return t.transition(ctx, key, entity.EventPoll, func(d *entity.Document, now time.Time) (string, any, error) {
		if !d.WasSubmitted() {
			return "", nil, fmt.Errorf("%w: clave %s", domain.ErrOrdering, key)
		}
		polledAt := p.PolledAt
		if polledAt.IsZero() {
			polledAt = now
		}
		d.LastPolledAt = &polledAt
		d.RemoteStatus = p.RemoteStatus
		d.PollResponse = p.Raw
		return d.Status, map[string]string{"ind-estado": p.RemoteStatus}, nil
	})
}

// Resubmit crea un registro nuevo en pending con la misma clave a partir de uno en error.
// El registro anterior queda intacto como historial.
func (t *Tracker) Resubmit(ctx context.Context, key, ownerID string) (*entity.Document, error) {
	var fresh *entity.Document
	err := t.tx.RunDocuments(ctx, func(docs repository.DocumentRepository) error {
		old, err := docs.GetByKey(ctx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("comprobante %s: %w", key, domain.ErrNotFound)
		}
		if old.OwnerID != ownerID {
			return domain.ErrForbidden
		}
		if old.Status != entity.DocumentStatusError {
			return fmt.Errorf("%w: solo se reenvía un comprobante en error (estado actual %s)",
				domain.ErrInvalidTransition, old.Status)
		}
		now := t.now()
		fresh = &entity.Document{
			ID:                uuid.NewString(),
			DocumentKey:       old.DocumentKey,
			DocumentType:      old.DocumentType,
			ConsecutiveNumber: old.ConsecutiveNumber,
			OwnerID:           old.OwnerID,
			CertificateID:     old.CertificateID,
			Status:            entity.DocumentStatusPending,
			Payload:           old.Payload,
			XML:               old.XML,
			SignedXML:         old.SignedXML,
			IssuedAt:          old.IssuedAt,
			ResubmissionOf:    old.ID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := docs.Create(ctx, fresh); err != nil {
			return err
		}
		return docs.AppendEvent(ctx, t.event(fresh, entity.EventResubmitted, entity.DocumentStatusError,
			entity.DocumentStatusPending, map[string]string{"resubmissionOf": old.ID}))
	})
	if err != nil {
		return nil, err
	}
	t.log.WithDocument(key).Info().Str("previous_id", fresh.ResubmissionOf).Msg("comprobante reabierto para reenvío")
	return fresh, nil
}

// RecordConfirmation agrega al historial el resultado de la confirmación remota.
func (t *Tracker) RecordConfirmation(ctx context.Context, d *entity.Document, detail any) error {
	return t.docs.AppendEvent(ctx, t.event(d, entity.EventConfirmation, d.Status, d.Status, detail))
}

// Events historial de la clave en orden cronológico.
func (t *Tracker) Events(ctx context.Context, key string) ([]*entity.DocumentEvent, error) {
	if _, err := t.Get(ctx, key); err != nil {
		return nil, err
	}
	return t.docs.ListEvents(ctx, key)
}

// transition lee el registro, aplica mutate y lo persiste con compare-and-set junto al evento.
// mutate devuelve el estado destino y el detalle del evento.
func (t *Tracker) transition(
	ctx context.Context,
	key, kind string,
	mutate func(d *entity.Document, now time.Time) (string, any, error),
) (*entity.Document, error) {
	var out *entity.Document
	var from string
	err := t.tx.RunDocuments(ctx, func(docs repository.DocumentRepository) error {
		d, err := docs.GetByKey(ctx, key)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("comprobante %s: %w", key, domain.ErrNotFound)
		}
		now := t.now()
		from = d.Status
		to, detail, err := mutate(d, now)
		if err != nil {
			return err
		}
		d.Status = to
		d.UpdatedAt = now
		ok, err := docs.UpdateLifecycle(ctx, d, from)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: el estado de %s cambió durante la operación", domain.ErrInvalidTransition, key)
		}
		if err := docs.AppendEvent(ctx, t.event(d, kind, from, to, detail)); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != out.Status {
		t.metrics.IncTransition(from, out.Status)
		t.log.WithDocument(key).Info().Str("from", from).Str("status", out.Status).Msg("estado actualizado")
	}
	return out, nil
}

func (t *Tracker) event(d *entity.Document, kind, from, to string, detail any) *entity.DocumentEvent {
	ev := &entity.DocumentEvent{
		ID:          uuid.NewString(),
		DocumentID:  d.ID,
		DocumentKey: d.DocumentKey,
		Kind:        kind,
		FromStatus:  from,
		ToStatus:    to,
		CreatedAt:   t.now(),
	}
	if detail != nil {
		ev.Detail, _ = json.Marshal(detail)
	}
	return ev
}
