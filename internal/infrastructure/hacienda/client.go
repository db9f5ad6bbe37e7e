package hacienda

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/pkg/config"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

const (
	maxResponseBytes      = 1 << 20 // 1 MB
	defaultTimeout        = 30 * time.Second
	defaultConfirmTimeout = 5 * time.Second
	formContentType       = "application/x-www-form-urlencoded; charset=utf-8"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// Identification identificación de una parte en el sobre de recepción.
type Identification struct {
	Type   string `json:"tipoIdentificacion"`
	Number string `json:"numeroIdentificacion"`
}

// SubmitRequest sobre JSON de POST /recepcion.
type SubmitRequest struct {
	Key       string
	IssuedAt  time.Time
	Emitter   Identification
	Receiver  *Identification
	SignedXML []byte
}

// StatusResponse respuesta de GET /recepcion/{clave}.
type StatusResponse struct {
	Key          string          `json:"clave"`
	Date         string          `json:"fecha"`
	RemoteStatus string          `json:"ind-estado"`
	ResponseXML  string          `json:"respuesta-xml"`
	Raw          json.RawMessage `json:"-"`
}

// Mensaje decodifica respuesta-xml cuando Hacienda ya la incluyó.
func (s *StatusResponse) Mensaje() (*MensajeHacienda, error) {
	if s.ResponseXML == "" {
		return nil, nil
	}
	return DecodeMensajeBase64(s.ResponseXML)
}

// Gateway define el puerto de salida hacia el API de comprobantes de Hacienda.
// La implementación concreta usa HTTP + OpenID; para tests se inyecta un mock.
type Gateway interface {
	Submit(ctx context.Context, req SubmitRequest) error
	Status(ctx context.Context, key string) (*StatusResponse, error)
	Confirm(ctx context.Context, confirmURL, token string) ([]byte, error)
	LookupTaxpayer(ctx context.Context, identification string) ([]byte, error)
	Logout(ctx context.Context) error
}

// ── Implementación HTTP ────────────────────────────────────────────────────────

// Client implementa Gateway. Comparte un TokenCache entre solicitudes y serializa
// la renovación del token con singleflight.
type Client struct {
	cfg        config.HaciendaConfig
	httpClient *http.Client
	tokens     *TokenCache
	group      singleflight.Group
	log        *logger.Logger
	now        func() time.Time
}

// NewClient construye el cliente. tokens puede ser nil (se crea uno propio).
func NewClient(cfg config.HaciendaConfig, tokens *TokenCache, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if tokens == nil {
		tokens = NewTokenCache()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		log:        log.WithComponent("hacienda_gateway"),
		now:        time.Now,
	}
}

// WithHTTPClient reemplaza el cliente HTTP (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// ── Token ─────────────────────────────────────────────────────────────────────

// AccessToken devuelve un token vigente: usa el caché, luego refresh_token y por último password.
// Varias solicitudes concurrentes con el token vencido disparan una sola llamada al IDP.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Access(c.now()); ok {
		return tok, nil
	}
	// La renovación es compartida: no depende del contexto del primer llamador,
	// solo del timeout del cliente. Cada llamador espera con su propio ctx.
	ch := c.group.DoChan("token", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		now := c.now()
		if tok, ok := c.tokens.Access(now); ok {
			return tok, nil
		}
		form := url.Values{"client_id": {c.cfg.ClientID}}
		if rt, ok := c.tokens.Refresh(now); ok {
			form.Set("grant_type", "refresh_token")
			form.Set("refresh_token", rt)
		} else {
			form.Set("grant_type", "password")
			form.Set("username", c.cfg.Username)
			form.Set("password", c.cfg.Password)
		}
		resp, err := c.requestToken(rctx, form)
		if err != nil {
			return "", err
		}
		c.tokens.Store(*resp, now)
		c.log.Debug().Str("grant", form.Get("grant_type")).Msg("token de Hacienda renovado")
		return resp.AccessToken, nil
	})
	select {
	case <-ctx.Done():
		return "", &domain.HaciendaError{Op: "token", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	const op = "token"
	status, body, err := c.do(ctx, op, http.MethodPost, c.idpEndpoint("token"),
		strings.NewReader(form.Encode()), formContentType, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(op, status, body)
	}
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &domain.HaciendaError{Op: op, StatusCode: status, Err: fmt.Errorf("respuesta de token inválida: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &domain.HaciendaError{Op: op, StatusCode: status, Err: errors.New("el IDP no devolvió access_token")}
	}
	return &tr, nil
}

// Logout invalida la sesión en el IDP y vacía el caché. Sin sesión no hace nada.
func (c *Client) Logout(ctx context.Context) error {
	const op = "logout"
	rt := c.tokens.Clear()
	if rt == "" {
		return nil
	}
	form := url.Values{"client_id": {c.cfg.ClientID}, "refresh_token": {rt}}
	status, body, err := c.do(ctx, op, http.MethodPost, c.idpEndpoint("logout"),
		strings.NewReader(form.Encode()), formContentType, "")
	if err != nil {
		return err
	}
	if status >= 300 {
		return statusError(op, status, body)
	}
	return nil
}

func (c *Client) idpEndpoint(name string) string {
	return strings.TrimRight(c.cfg.IDPURL, "/") + "/" + name
}

// ── Recepción ─────────────────────────────────────────────────────────────────

type recepcionBody struct {
	Clave          string          `json:"clave"`
	Fecha          string          `json:"fecha"`
	Emisor         Identification  `json:"emisor"`
	Receptor       *Identification `json:"receptor,omitempty"`
	ComprobanteXML string          `json:"comprobanteXml"`
}

// Submit envía el comprobante firmado. Hacienda responde 202 Accepted.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) error {
	const op = "recepcion"
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(recepcionBody{
		Clave:          req.Key,
		Fecha:          req.IssuedAt.Format(time.RFC3339),
		Emisor:         req.Emitter,
		Receptor:       req.Receiver,
		ComprobanteXML: base64.StdEncoding.EncodeToString(req.SignedXML),
	})
	if err != nil {
		return fmt.Errorf("hacienda: serializar recepción: %w", err)
	}
	status, body, err := c.do(ctx, op, http.MethodPost, c.apiEndpoint("recepcion"),
		bytes.NewReader(payload), "application/json", "Bearer "+token)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return statusError(op, status, body)
	}
	c.log.Info().Str("document_key", req.Key).Int("status", status).Msg("comprobante recibido por Hacienda")
	return nil
}

// Status consulta el estado del comprobante.
func (c *Client) Status(ctx context.Context, key string) (*StatusResponse, error) {
	const op = "estado"
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(ctx, op, http.MethodGet, c.apiEndpoint("recepcion/"+url.PathEscape(key)),
		nil, "", "Bearer "+token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("hacienda: clave %s: %w", key, domain.ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, statusError(op, status, body)
	}
	var sr StatusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, &domain.HaciendaError{Op: op, StatusCode: status, Err: fmt.Errorf("respuesta de estado inválida: %w", err)}
	}
	sr.RemoteStatus = strings.ToLower(strings.TrimSpace(sr.RemoteStatus))
	sr.Raw = json.RawMessage(body)
	return &sr, nil
}

func (c *Client) apiEndpoint(path string) string {
	return strings.TrimRight(c.cfg.APIURL, "/") + "/" + path
}

// ── Confirmación y contribuyentes ─────────────────────────────────────────────

// Confirm reenvía la confirmación a la URL indicada con el token del llamador.
// Nunca se reintenta aquí; el host debe estar en la lista permitida si hay una configurada.
func (c *Client) Confirm(ctx context.Context, confirmURL, token string) ([]byte, error) {
	const op = "confirmacion"
	if err := c.checkConfirmURL(confirmURL); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()
	status, body, err := c.do(ctx, op, http.MethodPost, confirmURL, nil, "application/json", "bearer "+token)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, statusError(op, status, body)
	}
	return body, nil
}

func (c *Client) checkConfirmURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return domain.NewValidationError("url", "URL de confirmación inválida")
	}
	if len(c.cfg.ConfirmHosts) == 0 {
		return nil
	}
	for _, h := range c.cfg.ConfirmHosts {
		if strings.EqualFold(h, u.Hostname()) || strings.EqualFold(h, u.Host) {
			return nil
		}
	}
	return domain.NewValidationError("url", "host de confirmación no permitido")
}

// LookupTaxpayer consulta la situación tributaria de una identificación (5 s).
func (c *Client) LookupTaxpayer(ctx context.Context, identification string) ([]byte, error) {
	const op = "contribuyente"
	if strings.TrimSpace(identification) == "" {
		return nil, domain.NewValidationError("identificacion", "Identificación requerida")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()
	endpoint := c.cfg.TaxpayerURL + "?" + url.Values{"identificacion": {identification}}.Encode()
	status, body, err := c.do(ctx, op, http.MethodGet, endpoint, nil, "", "")
	if err != nil {
		return nil, err
	}
	// Cualquier respuesta distinta de 200, incluido un 404 del servicio remoto, es
	// una falla del upstream y no un recurso inexistente de este API.
	if status != http.StatusOK {
		return nil, statusError(op, status, body)
	}
	return body, nil
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

// do ejecuta la solicitud y lee como máximo 1 MB de respuesta. Los fallos de red y
// timeouts se devuelven como HaciendaError reintentable.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType, auth string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, &domain.HaciendaError{Op: op, Err: fmt.Errorf("crear request: %w", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("timeout o cancelación: %w", ctx.Err())
		}
		c.log.Warn().Str("op", op).Err(err).Msg("llamada a Hacienda fallida")
		return 0, nil, &domain.HaciendaError{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &domain.HaciendaError{Op: op, StatusCode: resp.StatusCode, Retryable: true, Err: fmt.Errorf("leer respuesta: %w", err)}
	}
	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("respuesta de Hacienda")
	return resp.StatusCode, raw, nil
}

// statusError clasifica una respuesta no exitosa: 5xx y 429 admiten reintento.
func statusError(op string, status int, body []byte) *domain.HaciendaError {
	return &domain.HaciendaError{
		Op:         op,
		StatusCode: status,
		Retryable:  status >= 500 || status == http.StatusTooManyRequests,
		Body:       truncate(string(body), 512),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Gateway = (*Client)(nil)
