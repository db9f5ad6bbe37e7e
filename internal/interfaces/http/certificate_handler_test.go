package http_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/application/analytics"
	"github.com/jhoicas/hacienda-api/internal/application/auth"
	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/memory"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/secrets"
	apphttp "github.com/jhoicas/hacienda-api/internal/interfaces/http"
	"github.com/jhoicas/hacienda-api/pkg/config"
)

const (
	certPath     = "../../../testdata/cert_prueba.p12"
	certPassword = "123456"
)

var certNow = time.Date(2030, 3, 15, 10, 30, 0, 0, time.UTC)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func newCertServer(t *testing.T) (*fiber.App, *billing.CertificateUseCase) {
	t.Helper()
	box, err := secrets.NewBox("llave-de-servicio-para-pruebas")
	require.NoError(t, err)
	store := memory.NewStore()
	certs := billing.NewCertificateUseCase(store.Certificates(), box, nil).WithClock(func() time.Time { return certNow })
	tracker := billing.NewTracker(store.Documents(), store, nil, nil)
	orch := billing.NewOrchestrator(config.HaciendaConfig{Env: config.HaciendaEnvDev},
		billing.NewSimulatedSigning(), &fakeGateway{}, tracker, store.Documents(), nil, nil)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:        auth.NewAuthUseCase(store.Users(), auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: testExpMin}),
		Orchestrator:  orch,
		DocumentFiles: billing.NewDocumentFilesUseCase(store.Documents(), nil, nil, nil),
		Certificates:  certs,
		Summary:       analytics.NewSummaryUseCase(store.Analytics()),
		JWTSecret:     testJWTSecret,
	})
	return app, certs
}

func uploadCert(t *testing.T, certs *billing.CertificateUseCase, name string) string {
	t.Helper()
	data, err := os.ReadFile(certPath)
	require.NoError(t, err)
	res, err := certs.Upload(context.Background(), testUserID, name, data, certPassword)
	require.NoError(t, err)
	return res.ID
}

// ──────────────────────────────────────────────────────────────────────────────
// Certificados
// ──────────────────────────────────────────────────────────────────────────────

func TestCertificates_ActivarAnterior(t *testing.T) {
	app, certs := newCertServer(t)
	first := uploadCert(t, certs, "primero")
	second := uploadCert(t, certs, "segundo")

	resp, body := send(t, app, http.MethodPut, "/api/certificates/"+first+"/activate", bearer(t, testUserID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isActive"])

	resp, body = send(t, app, http.MethodGet, "/api/certificates/"+second+"/details", bearer(t, testUserID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["isActive"])

	resp, body = send(t, app, http.MethodGet, "/api/certificates/stats/overview", bearer(t, testUserID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, first, body["activeCertificateId"])
}

func TestCertificates_ActivarAjenoOInexistente(t *testing.T) {
	app, certs := newCertServer(t)
	id := uploadCert(t, certs, "x")

	resp, body := send(t, app, http.MethodPut, "/api/certificates/"+id+"/activate", bearer(t, "otro-usuario"), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["code"])

	resp, _ = send(t, app, http.MethodPut, "/api/certificates/no-existe/activate", bearer(t, testUserID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = send(t, app, http.MethodPut, "/api/certificates/"+id+"/activate", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCertificates_ActualizarNombreYEstado(t *testing.T) {
	app, certs := newCertServer(t)
	id := uploadCert(t, certs, "x")

	resp, body := send(t, app, http.MethodPut, "/api/certificates/"+id, bearer(t, testUserID), `{"name":"Firma principal","isActive":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Firma principal", body["name"])
	assert.Equal(t, "inactive", body["status"])

	resp, body = send(t, app, http.MethodPut, "/api/certificates/"+id, bearer(t, testUserID), `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", body["code"])

	resp, _ = send(t, app, http.MethodPut, "/api/certificates/"+id, bearer(t, testUserID), `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCertificates_Validar(t *testing.T) {
	app, certs := newCertServer(t)
	id := uploadCert(t, certs, "x")

	resp, body := send(t, app, http.MethodPost, "/api/certificates/"+id+"/validate", bearer(t, testUserID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Empty(t, body["problems"])
}
