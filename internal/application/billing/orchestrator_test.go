package billing_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda/signer"
)

// Clave esperada para facturaJSON emitida en fixedNow.
const expectedKey = "50615033003101538252001000010100000000011123456782"

// realSigning firma con el certificado de prueba cargado para ownerID.
func realSigning(t *testing.T) func(f *fixture) billing.SigningCapability {
	return func(f *fixture) billing.SigningCapability {
		p12, err := os.ReadFile(testP12)
		require.NoError(t, err)
		certs := billing.NewCertificateUseCase(f.store.Certificates(), f.box, nil)
		_, err = certs.Upload(context.Background(), ownerID, "prueba", p12, testP12Password)
		require.NoError(t, err)

		vault := billing.NewCertificateVault(f.store.Certificates(), f.box).WithClock(func() time.Time { return fixedNow })
		return billing.NewRealSigning(infrahacienda.NewXMLBuilderService(), signer.NewDigitalSignatureService(""), vault, "", nil)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Emit
// ──────────────────────────────────────────────────────────────────────────────

func TestEmit_SimuladoDevuelveXMLConPartes(t *testing.T) {
	f := newFixture(t, "dev", simulated)

	res, err := f.orch.Emit(context.Background(), ownerID, []byte(facturaJSON))
	require.NoError(t, err)
	assert.Len(t, res.DocumentKey, 50)
	assert.Equal(t, expectedKey, res.DocumentKey)
	assert.Equal(t, "00100001010000000001", res.Consecutive)
	assert.Contains(t, res.XML, "EMPRESA EMISORA S.A.")
	assert.Contains(t, res.XML, "CLIENTE RECEPTOR S.A.")
	assert.Empty(t, res.SignedXML)
	assert.Equal(t, entity.DocumentStatusPending, res.Status)
	f.gateway.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestEmit_EsDeterministaPorClave(t *testing.T) {
	f := newFixture(t, "dev", simulated)
	ctx := context.Background()

	_, err := f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	require.NoError(t, err)
	_, err = f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	assert.ErrorIs(t, err, domain.ErrDuplicate, "misma entrada, misma clave")
}

func TestEmit_CuerpoInvalido(t *testing.T) {
	f := newFixture(t, "dev", simulated)
	body := strings.Replace(facturaJSON, `"securityCode": "12345678"`, `"securityCode": "1234567"`, 1)

	_, err := f.orch.Emit(context.Background(), ownerID, []byte(body))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "securityCode", ve.Field)
}

func TestEmit_ClaveEcoConDigitoIncorrecto(t *testing.T) {
	f := newFixture(t, "dev", simulated)
	body := strings.Replace(facturaJSON, `"branch": "1",`,
		`"branch": "1", "documentKey": "50615032500206920142001000010100000000011123456780",`, 1)

	_, err := f.orch.Emit(context.Background(), ownerID, []byte(body))
	var ke *domain.KeyFormatError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, "documentKey", ke.Field)
}

func TestEmit_ClaveEcoValida(t *testing.T) {
	f := newFixture(t, "dev", simulated)
	echoed := "50615032500206920142001000010100000000011123456785"
	body := strings.Replace(facturaJSON, `"branch": "1",`, `"branch": "1", "documentKey": "`+echoed+`",`, 1)

	res, err := f.orch.Emit(context.Background(), ownerID, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, echoed, res.DocumentKey)
}

func TestEmit_FirmaRealYEnvio(t *testing.T) {
	f := newFixture(t, "stag", realSigning(t))
	f.gateway.On("Submit", mock.Anything, mock.MatchedBy(func(r infrahacienda.SubmitRequest) bool {
		return r.Key == expectedKey &&
			r.Emitter.Number == "3101538252" &&
			r.Receiver != nil && r.Receiver.Number == "3101999999" &&
			strings.Contains(string(r.SignedXML), "Signature")
	})).Return(nil).Once()

	res, err := f.orch.Emit(context.Background(), ownerID, []byte(facturaJSON))
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSent, res.Status)
	assert.Contains(t, res.SignedXML, "SignatureValue")
	assert.NotContains(t, res.XML, "SignatureValue", "el XML sin firma se conserva")
	f.gateway.AssertExpectations(t)

	d, err := f.tracker.Get(context.Background(), expectedKey)
	require.NoError(t, err)
	assert.NotEmpty(t, d.CertificateID)
}

func TestEmit_DevNoEnviaAunqueFirme(t *testing.T) {
	f := newFixture(t, "dev", realSigning(t))

	res, err := f.orch.Emit(context.Background(), ownerID, []byte(facturaJSON))
	require.NoError(t, err)
	assert.NotEmpty(t, res.SignedXML)
	assert.Equal(t, entity.DocumentStatusPending, res.Status)
	f.gateway.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestEmit_SinCertificado(t *testing.T) {
	f := newFixture(t, "stag", func(f *fixture) billing.SigningCapability {
		vault := billing.NewCertificateVault(f.store.Certificates(), f.box)
		return billing.NewRealSigning(infrahacienda.NewXMLBuilderService(), signer.NewDigitalSignatureService(""), vault, "", nil)
	})

	_, err := f.orch.Emit(context.Background(), ownerID, []byte(facturaJSON))
	var ce *domain.CertificateError
	require.ErrorAs(t, err, &ce)

	_, err = f.tracker.Get(context.Background(), expectedKey)
	assert.ErrorIs(t, err, domain.ErrNotFound, "no se registra nada si la firma falla")
}

func TestEmit_FalloDeEnvioSeReintentaConLaMismaClave(t *testing.T) {
	f := newFixture(t, "stag", realSigning(t))
	f.gateway.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.HaciendaError{Op: "submit", StatusCode: 503, Retryable: true}).Once()
	f.gateway.On("Submit", mock.Anything, mock.Anything).Return(nil).Once()
	ctx := context.Background()

	_, err := f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	var he *domain.HaciendaError
	require.ErrorAs(t, err, &he)
	assert.True(t, he.Retryable)

	d, err := f.tracker.Get(ctx, expectedKey)
	require.NoError(t, err)
	require.Equal(t, entity.DocumentStatusPending, d.Status, "el fallo de envío deja el registro en pending")
	firstID, signed := d.ID, d.SignedXML

	out, err := f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	require.NoError(t, err, "reintentar la emisión completa no debe dar duplicado")
	assert.Equal(t, entity.DocumentStatusSent, out.Status)
	assert.Equal(t, signed, out.SignedXML, "se envía el XML firmado guardado")

	d, err = f.tracker.Get(ctx, expectedKey)
	require.NoError(t, err)
	assert.Equal(t, firstID, d.ID, "no se crea un registro nuevo")
	f.gateway.AssertNumberOfCalls(t, "Submit", 2)

	events, err := f.tracker.Events(ctx, expectedKey)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventSubmitted, events[1].Kind)
}

func TestEmit_PendienteDeOtroUsuarioSigueDuplicado(t *testing.T) {
	f := newFixture(t, "stag", realSigning(t))
	f.gateway.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.HaciendaError{Op: "submit", StatusCode: 503, Retryable: true}).Once()
	ctx := context.Background()

	p12, err := os.ReadFile(testP12)
	require.NoError(t, err)
	_, err = billing.NewCertificateUseCase(f.store.Certificates(), f.box, nil).
		Upload(ctx, otherOwnerID, "otro", p12, testP12Password)
	require.NoError(t, err)

	_, err = f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	require.Error(t, err)

	_, err = f.orch.Emit(ctx, otherOwnerID, []byte(facturaJSON))
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	f.gateway.AssertNumberOfCalls(t, "Submit", 1)
}

func TestResubmit_PendienteConEnvioFallido(t *testing.T) {
	f := newFixture(t, "stag", realSigning(t))
	f.gateway.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.HaciendaError{Op: "submit", StatusCode: 503, Retryable: true}).Once()
	f.gateway.On("Submit", mock.Anything, mock.Anything).Return(nil).Once()
	ctx := context.Background()

	_, err := f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	require.Error(t, err)

	d, err := f.orch.Resubmit(ctx, ownerID, expectedKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSent, d.Status)
	assert.Empty(t, d.ResubmissionOf, "un pending se envía sobre el mismo registro")
}

func TestResubmit_PendienteEnDevNoAplica(t *testing.T) {
	f := newFixture(t, "dev", simulated)
	_, err := f.orch.Emit(context.Background(), ownerID, []byte(facturaJSON))
	require.NoError(t, err)

	_, err = f.orch.Resubmit(context.Background(), ownerID, expectedKey)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	f.gateway.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

// ──────────────────────────────────────────────────────────────────────────────
// Confirm / PollStatus
// ──────────────────────────────────────────────────────────────────────────────

func TestConfirm_AntesDelEnvio(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	_, err := f.orch.Emit(context.Background(), ownerID, []byte(facturaJSON))
	require.NoError(t, err)

	_, err = f.orch.Confirm(context.Background(), expectedKey, "https://api.comprobanteselectronicos.go.cr/x", "tok")
	assert.ErrorIs(t, err, domain.ErrOrdering)
	f.gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_RegistraEvento(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.sentDocument(t, testKey)
	f.gateway.On("Confirm", mock.Anything, "https://host/confirmar", "tok").Return([]byte(`{"ok":true}`), nil)

	body, err := f.orch.Confirm(context.Background(), testKey, "https://host/confirmar", "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	events, err := f.tracker.Events(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.EventConfirmation, events[len(events)-1].Kind)
}

func TestConfirm_FalloRemoto(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.sentDocument(t, testKey)
	f.gateway.On("Confirm", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &domain.HaciendaError{Op: "confirm", Retryable: true, Err: errors.New("timeout")})

	_, err := f.orch.Confirm(context.Background(), testKey, "https://host/confirmar", "tok")
	var he *domain.HaciendaError
	assert.ErrorAs(t, err, &he)
}

func TestPollStatus_ReconciliaVeredicto(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.sentDocument(t, testKey)
	f.gateway.On("Status", mock.Anything, testKey).Return(&infrahacienda.StatusResponse{
		Key: testKey, RemoteStatus: "aceptado", Raw: []byte(`{"ind-estado":"aceptado"}`),
	}, nil).Once()

	out, err := f.orch.PollStatus(context.Background(), ownerID, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusAccepted, out.Document.Status)
	assert.Equal(t, "aceptado", out.Document.RemoteStatus)
}

func TestPollStatus_ProcesandoNoCambiaEstado(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.sentDocument(t, testKey)
	f.gateway.On("Status", mock.Anything, testKey).
		Return(&infrahacienda.StatusResponse{Key: testKey, RemoteStatus: "procesando"}, nil)

	out, err := f.orch.PollStatus(context.Background(), ownerID, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSent, out.Document.Status)
}

func TestPollStatus_TerminalNoSeSobrescribe(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.sentDocument(t, testKey)
	f.gateway.On("Status", mock.Anything, testKey).
		Return(&infrahacienda.StatusResponse{Key: testKey, RemoteStatus: "aceptado"}, nil).Once()
	f.gateway.On("Status", mock.Anything, testKey).
		Return(&infrahacienda.StatusResponse{Key: testKey, RemoteStatus: "rechazado"}, nil).Once()

	_, err := f.orch.PollStatus(context.Background(), ownerID, testKey)
	require.NoError(t, err)
	out, err := f.orch.PollStatus(context.Background(), ownerID, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusAccepted, out.Document.Status)
	assert.Equal(t, "rechazado", out.Document.RemoteStatus, "la consulta queda registrada")
}

func TestPollStatus_OtroUsuario(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.sentDocument(t, testKey)

	_, err := f.orch.PollStatus(context.Background(), otherOwnerID, testKey)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// ──────────────────────────────────────────────────────────────────────────────
// Resubmit / LookupTaxpayer
// ──────────────────────────────────────────────────────────────────────────────

func TestResubmit_ReenviaXMLFirmado(t *testing.T) {
	f := newFixture(t, "stag", realSigning(t))
	f.gateway.On("Submit", mock.Anything, mock.Anything).Return(nil).Twice()
	f.gateway.On("Status", mock.Anything, expectedKey).
		Return(&infrahacienda.StatusResponse{Key: expectedKey, RemoteStatus: "error"}, nil).Once()

	ctx := context.Background()
	_, err := f.orch.Emit(ctx, ownerID, []byte(facturaJSON))
	require.NoError(t, err)
	out, err := f.orch.PollStatus(ctx, ownerID, expectedKey)
	require.NoError(t, err)
	require.Equal(t, entity.DocumentStatusError, out.Document.Status)

	d, err := f.orch.Resubmit(ctx, ownerID, expectedKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusSent, d.Status)
	assert.NotEmpty(t, d.ResubmissionOf)
	f.gateway.AssertNumberOfCalls(t, "Submit", 2)
}

func TestLookupTaxpayer_Passthrough(t *testing.T) {
	f := newFixture(t, "stag", simulated)
	f.gateway.On("LookupTaxpayer", mock.Anything, "3101538252").Return([]byte(`{"nombre":"EMPRESA"}`), nil)

	body, err := f.orch.LookupTaxpayer(context.Background(), "3101538252")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nombre":"EMPRESA"}`, string(body))
}
