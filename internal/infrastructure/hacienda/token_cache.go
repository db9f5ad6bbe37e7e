package hacienda

import (
	"sync"
	"time"
)

// tokenSkew margen para no usar un token a punto de vencer.
const tokenSkew = 10 * time.Second

// TokenResponse respuesta del endpoint openid-connect/token del IDP.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// TokenCache guarda el token del IDP compartido por todas las solicitudes.
// Es seguro para uso concurrente; la renovación se coordina desde el Client con singleflight.
type TokenCache struct {
	mu               sync.RWMutex
	accessToken      string
	expiresAt        time.Time
	refreshToken     string
	refreshExpiresAt time.Time
}

// NewTokenCache crea un caché vacío.
func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Access devuelve el access token si sigue vigente en now.
func (c *TokenCache) Access(now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.accessToken == "" || !now.Add(tokenSkew).Before(c.expiresAt) {
		return "", false
	}
	return c.accessToken, true
}

// Refresh devuelve el refresh token si todavía permite renovar.
func (c *TokenCache) Refresh(now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.refreshToken == "" || !now.Add(tokenSkew).Before(c.refreshExpiresAt) {
		return "", false
	}
	return c.refreshToken, true
}

// Store registra un token recién emitido; los vencimientos se calculan desde now.
func (c *TokenCache) Store(t TokenResponse, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = t.AccessToken
	c.expiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	c.refreshToken = t.RefreshToken
	c.refreshExpiresAt = now.Add(time.Duration(t.RefreshExpiresIn) * time.Second)
}

// Clear vacía el caché y devuelve el refresh token que había, para el logout.
func (c *TokenCache) Clear() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rt := c.refreshToken
	c.accessToken, c.refreshToken = "", ""
	c.expiresAt, c.refreshExpiresAt = time.Time{}, time.Time{}
	return rt
}
