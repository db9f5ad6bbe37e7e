package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/hacienda-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/hacienda-api/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testIssuer    = "hacienda-api-test"
	testExpMin    = 60
)

// protectedApp expone GET /protected detrás de AuthMiddleware + RequireRole(roles...).
func protectedApp(roles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequireRole(roles...),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"user_id": apphttp.GetUserID(c), "role": apphttp.GetRole(c)})
		},
	)
	return app
}

func tokenFor(t *testing.T, role string, expMinutes int) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, role, testIssuer, expMinutes)
	require.NoError(t, err)
	return "Bearer " + tok
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware + RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_Casos(t *testing.T) {
	cases := []struct {
		name   string
		roles  []string
		header func(t *testing.T) string
		status int
		code   string
	}{
		{"admin en ruta admin", []string{pkgjwt.RoleAdmin}, func(t *testing.T) string { return tokenFor(t, pkgjwt.RoleAdmin, testExpMin) }, http.StatusOK, ""},
		{"emisor en ruta multi-rol", []string{pkgjwt.RoleEmisor, pkgjwt.RoleAdmin}, func(t *testing.T) string { return tokenFor(t, pkgjwt.RoleEmisor, testExpMin) }, http.StatusOK, ""},
		{"emisor en ruta admin", []string{pkgjwt.RoleAdmin}, func(t *testing.T) string { return tokenFor(t, pkgjwt.RoleEmisor, testExpMin) }, http.StatusForbidden, "FORBIDDEN"},
		{"token sin rol", []string{pkgjwt.RoleAdmin}, func(t *testing.T) string { return tokenFor(t, "", testExpMin) }, http.StatusUnauthorized, "MISSING_ROLE"},
		{"sin header", []string{pkgjwt.RoleAdmin}, func(*testing.T) string { return "" }, http.StatusUnauthorized, "MISSING_TOKEN"},
		{"esquema distinto de Bearer", []string{pkgjwt.RoleAdmin}, func(*testing.T) string { return "Basic dXNlcjpwYXNz" }, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"token malformado", []string{pkgjwt.RoleAdmin}, func(*testing.T) string { return "Bearer token.invalido.aqui" }, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"token expirado", []string{pkgjwt.RoleAdmin}, func(t *testing.T) string { return tokenFor(t, pkgjwt.RoleAdmin, -1) }, http.StatusUnauthorized, "INVALID_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if h := tc.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			resp, err := protectedApp(tc.roles...).Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tc.code != "" {
				assert.Equal(t, tc.code, body["code"])
				return
			}
			assert.Equal(t, testUserID, body["user_id"], "el middleware carga el usuario en locals")
		})
	}
}

func TestAuthMiddleware_SecretoDistinto(t *testing.T) {
	tok, err := pkgjwt.Generate("otro-secreto", testUserID, pkgjwt.RoleAdmin, testIssuer, testExpMin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := protectedApp(pkgjwt.RoleAdmin).Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "la firma con otro secreto no se acepta")
}
