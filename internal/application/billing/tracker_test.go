package billing_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
)

func pending(key string) *entity.Document {
	return &entity.Document{DocumentKey: key, OwnerID: ownerID, Payload: []byte(`{}`), IssuedAt: fixedNow}
}

// ──────────────────────────────────────────────────────────────────────────────
// Ciclo de vida
// ──────────────────────────────────────────────────────────────────────────────

func TestTracker_SecuenciaCompleta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)

	require.NoError(t, f.tracker.Register(ctx, pending(testKey)))
	d, err := f.tracker.RecordSubmission(ctx, testKey, "<firmado/>")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSent, d.Status)
	assert.NotNil(t, d.SubmittedAt)
	assert.Equal(t, "<firmado/>", d.SignedXML)

	d, err = f.tracker.RecordResponse(ctx, testKey, domhacienda.Verdict{RemoteStatus: "aceptado", Message: "ok"})
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusAccepted, d.Status)
	assert.JSONEq(t, `{"ind-estado":"aceptado","mensaje":"ok"}`, string(d.Response))

	events, err := f.tracker.Events(ctx, testKey)
	require.NoError(t, err)
	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []string{entity.EventRegistered, entity.EventSubmitted, entity.EventResponse}, kinds)
}

func TestTracker_RespuestaAntesDelEnvio(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	require.NoError(t, f.tracker.Register(ctx, pending(testKey)))

	_, err := f.tracker.RecordResponse(ctx, testKey, domhacienda.Verdict{RemoteStatus: "aceptado"})
	assert.ErrorIs(t, err, domain.ErrOrdering)

	_, err = f.tracker.RecordPoll(ctx, testKey, domhacienda.PollResult{RemoteStatus: "procesando"})
	assert.ErrorIs(t, err, domain.ErrOrdering)

	d, err := f.tracker.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusPending, d.Status, "el estado no cambia")
}

func TestTracker_DobleEnvioRechazado(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	f.sentDocument(t, testKey)

	_, err := f.tracker.RecordSubmission(ctx, testKey, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTracker_ClaveDuplicada(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	require.NoError(t, f.tracker.Register(ctx, pending(testKey)))

	err := f.tracker.Register(ctx, pending(testKey))
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestTracker_ClaveInexistente(t *testing.T) {
	f := newFixture(t, "dev", simulated)
	_, err := f.tracker.RecordSubmission(context.Background(), testKey, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTracker_ConsultaEsInformativa(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	f.sentDocument(t, testKey)

	d, err := f.tracker.RecordPoll(ctx, testKey, domhacienda.PollResult{
		RemoteStatus: "procesando",
		Raw:          []byte(`{"ind-estado":"procesando"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSent, d.Status)
	assert.Equal(t, "procesando", d.RemoteStatus)
	require.NotNil(t, d.LastPolledAt)
	assert.True(t, d.LastPolledAt.Equal(fixedNow))
}

func TestTracker_EnvioConcurrenteSoloUnoGana(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	require.NoError(t, f.tracker.Register(ctx, pending(testKey)))

	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.tracker.RecordSubmission(ctx, testKey, ""); err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, domain.ErrInvalidTransition) {
				losses.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), losses.Load())
}

// ──────────────────────────────────────────────────────────────────────────────
// Reenvío
// ──────────────────────────────────────────────────────────────────────────────

func TestTracker_ReenvioDesdeError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	old := f.sentDocument(t, testKey)
	_, err := f.tracker.RecordResponse(ctx, testKey, domhacienda.Verdict{RemoteStatus: "error"})
	require.NoError(t, err)

	_, err = f.tracker.Resubmit(ctx, testKey, otherOwnerID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	fresh, err := f.tracker.Resubmit(ctx, testKey, ownerID)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, old.ID, fresh.ResubmissionOf)
	assert.Equal(t, entity.DocumentStatusPending, fresh.Status)
	assert.Equal(t, old.SignedXML, fresh.SignedXML)

	current, err := f.tracker.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, current.ID, "la clave apunta al registro nuevo")

	previous, err := f.store.Documents().GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusError, previous.Status, "el historial se conserva")
}

func TestTracker_ReenvioSoloDesdeError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dev", simulated)
	f.sentDocument(t, testKey)

	_, err := f.tracker.Resubmit(ctx, testKey, ownerID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
