package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/application/billing"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/memory"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/secrets"
	"github.com/jhoicas/hacienda-api/pkg/config"
)

const (
	ownerID         = "user-1"
	otherOwnerID    = "user-2"
	testKey         = "50615032500310153825200100001010000000001112345678"
	testP12         = "../../../testdata/cert_prueba.p12"
	testP12Password = "123456"
	serviceKey      = "llave-de-servicio-para-pruebas"
)

var fixedNow = time.Date(2030, 3, 15, 10, 30, 0, 0, time.FixedZone("CR", -6*3600))

const facturaJSON = `{
  "document": {
    "documentName": "FacturaElectronica",
    "providerId": "3101538252",
    "countryCode": "506",
    "securityCode": "12345678",
    "activityCode": "930903",
    "consecutiveIdentifier": "1",
    "ceSituation": "1",
    "branch": "1",
    "terminal": "1",
    "conditionSale": "01",
    "paymentMethod": "01",
    "emitter": {
      "fullName": "EMPRESA EMISORA S.A.",
      "identifier": {"type": "02", "id": "3101538252"},
      "activityCode": "930903",
      "location": {"province": "1", "canton": "01", "district": "01", "neighborhood": "01", "details": "Avenida central"}
    },
    "receiver": {
      "fullName": "CLIENTE RECEPTOR S.A.",
      "identifier": {"type": "02", "id": "3101999999"},
      "activityCode": "721001",
      "email": "cliente@receptor.cr",
      "location": {"province": "1", "canton": "01", "district": "01", "neighborhood": "01", "details": "Calle 5"}
    },
    "orderLines": [
      {"detail": "Producto X", "unitaryPrice": 100, "quantity": 2, "tax": {"code": "01", "rateCode": "08", "rate": 13}}
    ]
  }
}`

// ──────────────────────────────────────────────────────────────────────────────
// Mock del gateway
// ──────────────────────────────────────────────────────────────────────────────

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) Submit(ctx context.Context, req infrahacienda.SubmitRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *gatewayMock) Status(ctx context.Context, key string) (*infrahacienda.StatusResponse, error) {
	args := m.Called(ctx, key)
	r, _ := args.Get(0).(*infrahacienda.StatusResponse)
	return r, args.Error(1)
}

func (m *gatewayMock) Confirm(ctx context.Context, confirmURL, token string) ([]byte, error) {
	args := m.Called(ctx, confirmURL, token)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *gatewayMock) LookupTaxpayer(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *gatewayMock) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ infrahacienda.Gateway = (*gatewayMock)(nil)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	store   *memory.Store
	tracker *billing.Tracker
	gateway *gatewayMock
	box     *secrets.Box
	orch    *billing.Orchestrator
}

// newFixture arma el orquestador sobre memoria. env dev no envía nada a Hacienda.
func newFixture(t *testing.T, env string, signing func(f *fixture) billing.SigningCapability) *fixture {
	t.Helper()
	box, err := secrets.NewBox(serviceKey)
	require.NoError(t, err)
	store := memory.NewStore()
	f := &fixture{
		store:   store,
		tracker: billing.NewTracker(store.Documents(), store, nil, nil).WithClock(func() time.Time { return fixedNow }),
		gateway: &gatewayMock{},
		box:     box,
	}
	cfg := config.HaciendaConfig{Env: env}
	f.orch = billing.NewOrchestrator(cfg, signing(f), f.gateway, f.tracker, store.Documents(), nil, nil).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func simulated(*fixture) billing.SigningCapability { return billing.NewSimulatedSigning() }

// sentDocument registra un comprobante y lo deja en sent.
func (f *fixture) sentDocument(t *testing.T, key string) *entity.Document {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.tracker.Register(ctx, &entity.Document{
		DocumentKey: key,
		OwnerID:     ownerID,
		Payload:     []byte(`{}`),
		XML:         "<FacturaElectronica/>",
		SignedXML:   "<FacturaElectronica><ds:Signature/></FacturaElectronica>",
		IssuedAt:    fixedNow,
	}))
	d, err := f.tracker.RecordSubmission(ctx, key, "")
	require.NoError(t, err)
	return d
}
