package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/metrics"
	"github.com/jhoicas/hacienda-api/pkg/config"
	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// EmitResult resultado de validar y emitir un comprobante.
type EmitResult struct {
	DocumentKey string
	Consecutive string
	XML         string
	SignedXML   string
	Status      string
}

// PollOutcome registro actualizado y respuesta remota de una consulta de estado.
type PollOutcome struct {
	Document *entity.Document
	Remote   *infrahacienda.StatusResponse
	Mensaje  *infrahacienda.MensajeHacienda
}

// Orchestrator coordina validación, clave, firma, registro y envío a Hacienda.
// Si un paso falla, el estado local queda como estaba antes de ese paso.
type Orchestrator struct {
	cfg     config.HaciendaConfig
	signing SigningCapability
	gateway infrahacienda.Gateway
	tracker *Tracker
	docs    repository.DocumentRepository
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOrchestrator crea el orquestador. gateway solo se usa si cfg.Submits().
func NewOrchestrator(
	cfg config.HaciendaConfig,
	signing SigningCapability,
	gateway infrahacienda.Gateway,
	tracker *Tracker,
	docs repository.DocumentRepository,
	log *logger.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		cfg:     cfg,
		signing: signing,
		gateway: gateway,
		tracker: tracker,
		docs:    docs,
		log:     log.WithComponent("orchestrator"),
		metrics: m,
		now:     time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Emit valida el cuerpo, deriva la clave, genera el XML y registra el comprobante.
// Fuera de dev y con firma real, además lo envía a Hacienda.
func (o *Orchestrator) Emit(ctx context.Context, ownerID string, body []byte) (*EmitResult, error) {
	raw, err := domhacienda.Normalize(body)
	if err != nil {
		return nil, o.validationFailed(err)
	}
	doc, err := domhacienda.Validate(raw)
	if err != nil {
		return nil, o.validationFailed(err)
	}
	typeCode, ok := doc.TypeCode()
	if !ok {
		return nil, o.validationFailed(domain.NewValidationError("documentName",
			fmt.Sprintf("Tipo de documento '%s' no soportado.", doc.DocumentName)))
	}

	issuedAt := o.now()
	consecutive, err := pkghacienda.ConsecutiveNumber(doc.Branch, doc.Terminal, typeCode, doc.ConsecutiveIdentifier)
	if err != nil {
		return nil, err
	}
	key, err := o.resolveKey(doc, typeCode, issuedAt)
	if err != nil {
		return nil, err
	}
	log := o.log.WithDocument(key)

	unsent, err := o.unsentPending(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	if unsent != nil {
		log.Info().Msg("reintento de envío de un comprobante pendiente")
		sent, err := o.submitStored(ctx, unsent)
		if err != nil {
			return nil, err
		}
		return &EmitResult{
			DocumentKey: key,
			Consecutive: sent.ConsecutiveNumber,
			XML:         sent.XML,
			SignedXML:   sent.SignedXML,
			Status:      sent.Status,
		}, nil
	}

	rendered, err := o.signing.Render(ctx, RenderRequest{
		OwnerID:     ownerID,
		Document:    doc,
		Key:         key,
		Consecutive: consecutive,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("signer", o.signing.Name()).Msg("no se pudo generar el XML")
		return nil, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serializar documento: %w", err)
	}
	record := &entity.Document{
		DocumentKey:       key,
		DocumentType:      typeCode,
		ConsecutiveNumber: consecutive,
		OwnerID:           ownerID,
		CertificateID:     rendered.CertificateID,
		Payload:           payload,
		XML:               string(rendered.XML),
		SignedXML:         string(rendered.SignedXML),
		IssuedAt:          issuedAt,
	}
	if err := o.tracker.Register(ctx, record); err != nil {
		return nil, err
	}
	o.metrics.IncEmitted(doc.DocumentName, o.signing.Name())

	if o.cfg.Submits() && len(rendered.SignedXML) > 0 {
		sent, err := o.submit(ctx, record, doc)
		if err != nil {
			return nil, err
		}
		record = sent
	}

	return &EmitResult{
		DocumentKey: key,
		Consecutive: consecutive,
		XML:         record.XML,
		SignedXML:   record.SignedXML,
		Status:      record.Status,
	}, nil
}

// unsentPending devuelve el registro pending del mismo dueño cuyo envío falló, o nil.
// Solo aplica cuando el entorno envía y el registro tiene XML firmado; en otro caso
// una clave repetida sigue siendo domain.ErrDuplicate.
func (o *Orchestrator) unsentPending(ctx context.Context, ownerID, key string) (*entity.Document, error) {
	if !o.cfg.Submits() {
		return nil, nil
	}
	d, err := o.docs.GetByKey(ctx, key)
	if err != nil || d == nil {
		return nil, err
	}
	if d.Status != entity.DocumentStatusPending || d.OwnerID != ownerID || d.SignedXML == "" {
		return nil, nil
	}
	return d, nil
}

// resolveKey usa la clave del cliente si viene (verificando formato y dígito) o la genera.
func (o *Orchestrator) resolveKey(doc *domhacienda.Document, typeCode string, issuedAt time.Time) (string, error) {
	if doc.DocumentKey != "" {
		if err := pkghacienda.ValidateKey(doc.DocumentKey); err != nil {
			return "", err
		}
		return doc.DocumentKey, nil
	}
	return pkghacienda.GenerateKey(pkghacienda.KeyInput{
		Branch:       doc.Branch,
		Terminal:     doc.Terminal,
		DocumentType: typeCode,
		Sequence:     doc.ConsecutiveIdentifier,
		IssueDate:    issuedAt,
		Issuer:       doc.Emitter.Identifier.ID,
		SecurityCode: doc.SecurityCode,
		Situation:    doc.CESituation,
	})
}

func (o *Orchestrator) validationFailed(err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		o.metrics.IncValidationFailure(ve.Field)
	}
	return err
}

// submit envía el XML firmado y registra pending → sent.
func (o *Orchestrator) submit(ctx context.Context, record *entity.Document, doc *domhacienda.Document) (*entity.Document, error) {
	req := infrahacienda.SubmitRequest{
		Key:       record.DocumentKey,
		IssuedAt:  record.IssuedAt,
		Emitter:   identification(doc.Emitter),
		SignedXML: []byte(record.SignedXML),
	}
	if doc.Receiver != nil {
		r := identification(*doc.Receiver)
		req.Receiver = &r
	}
	start := time.Now()
	err := o.gateway.Submit(ctx, req)
	o.observe("submit", start, err)
	if err != nil {
		o.log.WithDocument(record.DocumentKey).Error().Err(err).Msg("envío a Hacienda falló")
		return nil, err
	}
	return o.tracker.RecordSubmission(ctx, record.DocumentKey, record.SignedXML)
}

func identification(p domhacienda.Party) infrahacienda.Identification {
	return infrahacienda.Identification{Type: p.Identifier.Type, Number: p.Identifier.ID}
}

// Confirm reenvía la confirmación al URL indicado con el token de Hacienda del llamador.
// Requiere que el comprobante ya se haya enviado.
func (o *Orchestrator) Confirm(ctx context.Context, key, confirmURL, token string) ([]byte, error) {
	d, err := o.tracker.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !d.WasSubmitted() {
		return nil, fmt.Errorf("%w: clave %s", domain.ErrOrdering, key)
	}
	start := time.Now()
	body, err := o.gateway.Confirm(ctx, confirmURL, token)
	o.observe("confirm", start, err)
	if err != nil {
		return nil, err
	}
	detail := map[string]any{"url": confirmURL, "bytes": len(body)}
	if err := o.tracker.RecordConfirmation(ctx, d, detail); err != nil {
		o.log.WithDocument(key).Warn().Err(err).Msg("no se pudo registrar la confirmación")
	}
	return body, nil
}

// PollStatus consulta el estado remoto, lo registra y, si el comprobante sigue en sent y
// Hacienda ya dio veredicto, lo aplica. Un estado local terminal nunca se sobrescribe.
func (o *Orchestrator) PollStatus(ctx context.Context, ownerID, key string) (*PollOutcome, error) {
	d, err := o.ownedDocument(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	if !d.WasSubmitted() {
		return nil, fmt.Errorf("%w: clave %s", domain.ErrOrdering, key)
	}

	start := time.Now()
	remote, err := o.gateway.Status(ctx, key)
	o.observe("status", start, err)
	if err != nil {
		return nil, err
	}
	poll := domhacienda.PollResult{RemoteStatus: remote.RemoteStatus, Raw: remote.Raw, PolledAt: o.now()}
	d, err = o.tracker.RecordPoll(ctx, key, poll)
	if err != nil {
		return nil, err
	}

	out := &PollOutcome{Document: d, Remote: remote}
	if m, err := remote.Mensaje(); err == nil {
		out.Mensaje = m
	} else {
		o.log.WithDocument(key).Warn().Err(err).Msg("respuesta-xml ilegible")
	}

	if d.Status == entity.DocumentStatusSent && poll.IsTerminal() {
		v := poll.Verdict()
		if out.Mensaje != nil {
			v.Message = out.Mensaje.DetalleMensaje
		}
		updated, err := o.tracker.RecordResponse(ctx, key, v)
		switch {
		case err == nil:
			out.Document = updated
		case errors.Is(err, domain.ErrInvalidTransition):
			// otro proceso aplicó el veredicto primero
			if out.Document, err = o.tracker.Get(ctx, key); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	return out, nil
}

// Resubmit vuelve a enviar el XML firmado. Un comprobante en error se reabre como registro
// nuevo; uno en pending cuyo envío falló se envía sobre el mismo registro.
func (o *Orchestrator) Resubmit(ctx context.Context, ownerID, key string) (*entity.Document, error) {
	current, err := o.ownedDocument(ctx, ownerID, key)
	if err != nil {
		return nil, err
	}
	if current.Status == entity.DocumentStatusPending {
		if !o.cfg.Submits() || current.SignedXML == "" {
			return nil, fmt.Errorf("%w: el comprobante pendiente no tiene envío que reintentar",
				domain.ErrInvalidTransition)
		}
		return o.submitStored(ctx, current)
	}

	fresh, err := o.tracker.Resubmit(ctx, key, ownerID)
	if err != nil {
		return nil, err
	}
	if !o.cfg.Submits() || fresh.SignedXML == "" {
		return fresh, nil
	}
	return o.submitStored(ctx, fresh)
}

// submitStored envía un registro usando el documento normalizado guardado con él.
func (o *Orchestrator) submitStored(ctx context.Context, record *entity.Document) (*entity.Document, error) {
	var doc domhacienda.Document
	if err := json.Unmarshal(record.Payload, &doc); err != nil {
		return nil, fmt.Errorf("leer documento almacenado: %w", err)
	}
	return o.submit(ctx, record, &doc)
}

// LookupTaxpayer consulta la actividad económica de un contribuyente.
func (o *Orchestrator) LookupTaxpayer(ctx context.Context, identification string) ([]byte, error) {
	start := time.Now()
	body, err := o.gateway.LookupTaxpayer(ctx, identification)
	o.observe("taxpayer", start, err)
	return body, err
}

// Document registro vigente de la clave, solo para su dueño.
func (o *Orchestrator) Document(ctx context.Context, ownerID, key string) (*entity.Document, error) {
	return o.ownedDocument(ctx, ownerID, key)
}

// Documents comprobantes del usuario, más recientes primero.
func (o *Orchestrator) Documents(ctx context.Context, ownerID string, limit, offset int) ([]*entity.Document, error) {
	return o.docs.ListByOwner(ctx, ownerID, limit, offset)
}

// Events historial de la clave, solo para su dueño.
func (o *Orchestrator) Events(ctx context.Context, ownerID, key string) ([]*entity.DocumentEvent, error) {
	if _, err := o.ownedDocument(ctx, ownerID, key); err != nil {
		return nil, err
	}
	return o.tracker.Events(ctx, key)
}

func (o *Orchestrator) ownedDocument(ctx context.Context, ownerID, key string) (*entity.Document, error) {
	d, err := o.tracker.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return d, nil
}

func (o *Orchestrator) observe(op string, start time.Time, err error) {
	var he *domain.HaciendaError
	retryable := errors.As(err, &he) && he.Retryable
	o.metrics.ObserveGateway(op, time.Since(start), err, retryable)
}
