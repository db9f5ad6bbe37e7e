package hacienda_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/domain"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/hacienda-api/pkg/config"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// fakeHacienda simula el IDP y el API de recepción.
type fakeHacienda struct {
	tokenCalls   atomic.Int32
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
	expiresIn    int
	recepcion    func(w http.ResponseWriter, r *http.Request)
	estado       func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeHacienda) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/idp/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "api-stag", r.PostForm.Get("client_id"))
		switch r.PostForm.Get("grant_type") {
		case "password":
			f.tokenCalls.Add(1)
			assert.Equal(t, "usuario", r.PostForm.Get("username"))
		case "refresh_token":
			f.refreshCalls.Add(1)
			assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":       "at-1",
			"expires_in":         f.expiresIn,
			"refresh_token":      "rt-1",
			"refresh_expires_in": 3600,
		})
	})
	mux.HandleFunc("/idp/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/recepcion", func(w http.ResponseWriter, r *http.Request) {
		f.recepcion(w, r)
	})
	mux.HandleFunc("/api/recepcion/", func(w http.ResponseWriter, r *http.Request) {
		f.estado(w, r)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeHacienda) (*infrahacienda.Client, *httptest.Server) {
	t.Helper()
	if f.expiresIn == 0 {
		f.expiresIn = 300
	}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := config.HaciendaConfig{
		IDPURL:         srv.URL + "/idp",
		ClientID:       "api-stag",
		Username:       "usuario",
		Password:       "secreto",
		APIURL:         srv.URL + "/api",
		TaxpayerURL:    srv.URL + "/fe/ae",
		Timeout:        2 * time.Second,
		ConfirmTimeout: 500 * time.Millisecond,
	}
	return infrahacienda.NewClient(cfg, nil, nil), srv
}

// ──────────────────────────────────────────────────────────────────────────────
// Token
// ──────────────────────────────────────────────────────────────────────────────

func TestAccessToken_SeReutilizaMientrasEsVigente(t *testing.T) {
	f := &fakeHacienda{}
	c, _ := newTestClient(t, f)

	for i := 0; i < 3; i++ {
		tok, err := c.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "at-1", tok)
	}
	assert.Equal(t, int32(1), f.tokenCalls.Load(), "una sola llamada al IDP")
}

func TestAccessToken_ConcurrenciaUnaSolaRenovacion(t *testing.T) {
	f := &fakeHacienda{}
	c, _ := newTestClient(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AccessToken(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, f.tokenCalls.Load(), int32(2))
	assert.GreaterOrEqual(t, f.tokenCalls.Load(), int32(1))
}

func TestAccessToken_VencidoUsaRefreshToken(t *testing.T) {
	f := &fakeHacienda{expiresIn: 1} // menor que el margen: siempre vencido
	c, _ := newTestClient(t, f)

	_, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, int32(1), f.refreshCalls.Load())
}

func TestLogout_VaciaElCache(t *testing.T) {
	f := &fakeHacienda{}
	c, _ := newTestClient(t, f)

	require.NoError(t, c.Logout(context.Background()), "sin sesión no hace nada")
	assert.Equal(t, int32(0), f.logoutCalls.Load())

	_, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, int32(1), f.logoutCalls.Load())

	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenCalls.Load(), "tras el logout se pide un token nuevo")
}

// ──────────────────────────────────────────────────────────────────────────────
// Recepción y estado
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmit_EnviaSobreJSON(t *testing.T) {
	f := &fakeHacienda{}
	var got map[string]any
	f.recepcion = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}
	c, _ := newTestClient(t, f)

	err := c.Submit(context.Background(), infrahacienda.SubmitRequest{
		Key:       testKey,
		IssuedAt:  time.Date(2025, 3, 15, 10, 30, 0, 0, time.FixedZone("CR", -6*3600)),
		Emitter:   infrahacienda.Identification{Type: "02", Number: "3101538252"},
		SignedXML: []byte("<FacturaElectronica/>"),
	})
	require.NoError(t, err)

	assert.Equal(t, testKey, got["clave"])
	assert.Equal(t, "2025-03-15T10:30:00-06:00", got["fecha"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("<FacturaElectronica/>")), got["comprobanteXml"])
	assert.NotContains(t, got, "receptor")
	emisor := got["emisor"].(map[string]any)
	assert.Equal(t, "3101538252", emisor["numeroIdentificacion"])
}

func TestSubmit_ErroresClasificados(t *testing.T) {
	cases := []struct {
		nombre    string
		status    int
		retryable bool
	}{
		{"solicitud inválida", http.StatusBadRequest, false},
		{"demasiadas solicitudes", http.StatusTooManyRequests, true},
		{"error del servidor", http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		t.Run(tc.nombre, func(t *testing.T) {
			f := &fakeHacienda{}
			f.recepcion = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("detalle"))
			}
			c, _ := newTestClient(t, f)

			err := c.Submit(context.Background(), infrahacienda.SubmitRequest{Key: testKey})
			var he *domain.HaciendaError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, tc.status, he.StatusCode)
			assert.Equal(t, tc.retryable, he.Retryable)
			assert.Equal(t, "detalle", he.Body)
		})
	}
}

func TestStatus_DecodificaIndEstado(t *testing.T) {
	mensaje := base64.StdEncoding.EncodeToString([]byte(
		`<?xml version="1.0" encoding="UTF-8"?><MensajeHacienda><Clave>` + testKey + `</Clave><Mensaje>1</Mensaje><DetalleMensaje>Aceptado</DetalleMensaje></MensajeHacienda>`))
	f := &fakeHacienda{}
	f.estado = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recepcion/"+testKey, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"clave":         testKey,
			"fecha":         "2025-03-15T10:31:00-06:00",
			"ind-estado":    "ACEPTADO",
			"respuesta-xml": mensaje,
		})
	}
	c, _ := newTestClient(t, f)

	st, err := c.Status(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "aceptado", st.RemoteStatus)
	assert.NotEmpty(t, st.Raw)

	m, err := st.Mensaje()
	require.NoError(t, err)
	assert.True(t, m.Accepted())
	assert.Equal(t, "Aceptado", m.DetalleMensaje)
}

func TestStatus_ClaveDesconocida(t *testing.T) {
	f := &fakeHacienda{}
	f.estado = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }
	c, _ := newTestClient(t, f)

	_, err := c.Status(context.Background(), testKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Confirmación y contribuyentes
// ──────────────────────────────────────────────────────────────────────────────

func TestConfirm_ReenviaTokenDelLlamador(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bearer token-externo", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer remote.Close()
	c, _ := newTestClient(t, &fakeHacienda{})

	body, err := c.Confirm(context.Background(), remote.URL+"/confirmar", "token-externo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestConfirm_TimeoutEsHaciendaError(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer remote.Close()
	c, _ := newTestClient(t, &fakeHacienda{})

	_, err := c.Confirm(context.Background(), remote.URL, "tok")
	var he *domain.HaciendaError
	require.True(t, errors.As(err, &he), "se esperaba HaciendaError, se obtuvo %v", err)
	assert.True(t, he.Retryable)
}

func TestConfirm_HostNoPermitido(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := infrahacienda.NewClient(config.HaciendaConfig{ConfirmHosts: []string{"api.hacienda.go.cr"}}, nil, nil)

	_, err := c.Confirm(context.Background(), srv.URL, "tok")
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "url", ve.Field)

	_, err = c.Confirm(context.Background(), "no-es-url", "tok")
	assert.True(t, errors.As(err, &ve))
}

func TestLookupTaxpayer_Passthrough(t *testing.T) {
	c, _ := newTestClient(t, &fakeHacienda{})

	_, err := c.LookupTaxpayer(context.Background(), "")
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))

	taxSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3101538252", r.URL.Query().Get("identificacion"))
		_, _ = w.Write([]byte(`{"nombre":"EMPRESA EMISORA S.A."}`))
	}))
	defer taxSrv.Close()
	c = infrahacienda.NewClient(config.HaciendaConfig{TaxpayerURL: taxSrv.URL}, nil, nil)

	body, err := c.LookupTaxpayer(context.Background(), "3101538252")
	require.NoError(t, err)
	assert.Contains(t, string(body), "EMPRESA EMISORA")
}

func TestLookupTaxpayer_NoEncontradoRemotoEsHaciendaError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		taxSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":404,"status":"NOT_FOUND"}`))
		}))
		c := infrahacienda.NewClient(config.HaciendaConfig{TaxpayerURL: taxSrv.URL}, nil, nil)

		_, err := c.LookupTaxpayer(context.Background(), "3101538252")
		taxSrv.Close()

		var he *domain.HaciendaError
		require.True(t, errors.As(err, &he), "status %d", status)
		assert.Equal(t, status, he.StatusCode)
		assert.False(t, errors.Is(err, domain.ErrNotFound), "un 404 remoto no es un recurso inexistente del API")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Renovación compartida
// ──────────────────────────────────────────────────────────────────────────────

func TestAccessToken_CancelarPrimerLlamadorNoAfectaAlSegundo(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-1", "expires_in": 300,
			"refresh_token": "rt-1", "refresh_expires_in": 3600,
		})
	}))
	defer idp.Close()
	c := infrahacienda.NewClient(config.HaciendaConfig{
		IDPURL: idp.URL, ClientID: "api-stag", Username: "usuario", Password: "secreto",
		Timeout: 2 * time.Second,
	}, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.AccessToken(firstCtx)
		firstErr <- err
	}()
	<-started

	secondTok := make(chan string, 1)
	go func() {
		tok, err := c.AccessToken(context.Background())
		assert.NoError(t, err)
		secondTok <- tok
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		var he *domain.HaciendaError
		require.True(t, errors.As(err, &he))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("el primer llamador no respetó su cancelación")
	}

	close(release)
	select {
	case tok := <-secondTok:
		assert.Equal(t, "at-1", tok)
	case <-time.After(time.Second):
		t.Fatal("el segundo llamador no recibió el token")
	}
	assert.Equal(t, int32(1), calls.Load(), "una sola renovación compartida")

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok, "el token renovado quedó en caché")
}
