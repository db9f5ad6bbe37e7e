package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_ValoresPorDefecto(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, HaciendaEnvDev, cfg.Hacienda.Env)
	assert.Equal(t, SignerSimulated, cfg.Hacienda.Signer)
	assert.False(t, cfg.Hacienda.Submits(), "dev no envía a Hacienda")
	assert.Equal(t, "api-stag", cfg.Hacienda.ClientID)
	assert.Contains(t, cfg.Hacienda.APIURL, "api-sandbox")
	assert.Equal(t, 5*time.Second, cfg.Hacienda.ConfirmTimeout)
	assert.Equal(t, "postgres", cfg.Storage)
	assert.False(t, cfg.SMTP.Enabled())
	assert.Equal(t, 25, cfg.DB.MaxConns)
	assert.Equal(t, C14NInclusive, cfg.Hacienda.C14N)
	assert.False(t, cfg.DB.ForceIPv4)
}

func TestFromViper_Produccion(t *testing.T) {
	v := viper.New()
	v.Set("HACIENDA_ENV", "prod")
	v.Set("HACIENDA_TIMEOUT_SECONDS", "12")
	v.Set("HACIENDA_CONFIRM_HOSTS", "a.example.com, ,b.example.com")
	v.Set("DB_FORCE_IPV4", "true")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.Hacienda.Submits())
	assert.Equal(t, "api-prod", cfg.Hacienda.ClientID)
	assert.Contains(t, cfg.Hacienda.IDPURL, "/realms/rut/")
	assert.Equal(t, 12*time.Second, cfg.Hacienda.Timeout)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Hacienda.ConfirmHosts)
	assert.True(t, cfg.DB.ForceIPv4)
}

func TestFromViper_ValoresInvalidos(t *testing.T) {
	v := viper.New()
	v.Set("HACIENDA_ENV", "qa")
	_, err := fromViper(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("HACIENDA_SIGNER", "real")
	_, err = fromViper(v)
	assert.Error(t, err, "firma real sin llave de cifrado")

	v = viper.New()
	v.Set("HACIENDA_C14N", "c14n11")
	_, err = fromViper(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("STORAGE", "sqlite")
	_, err = fromViper(v)
	assert.Error(t, err)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/w", DBName: "hacienda", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fw@db:5432/hacienda?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
