package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hacienda-api/internal/infrastructure/secrets"
)

func TestBox_CifraYDescifra(t *testing.T) {
	box, err := secrets.NewBox("llave-de-servicio-de-prueba")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("clave-del-p12"), []byte("cert-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "clave-del-p12")

	plain, err := box.Open(sealed, []byte("cert-1"))
	require.NoError(t, err)
	assert.Equal(t, "clave-del-p12", string(plain))
}

func TestBox_ContextoDistintoFalla(t *testing.T) {
	box, err := secrets.NewBox("llave-de-servicio-de-prueba")
	require.NoError(t, err)
	sealed, err := box.Seal([]byte("secreto"), []byte("cert-1"))
	require.NoError(t, err)

	_, err = box.Open(sealed, []byte("cert-2"))
	assert.ErrorIs(t, err, secrets.ErrDecrypt)

	other, err := secrets.NewBox("otra-llave-de-servicio-distinta")
	require.NoError(t, err)
	_, err = other.Open(sealed, []byte("cert-1"))
	assert.ErrorIs(t, err, secrets.ErrDecrypt)

	_, err = box.Open([]byte("corto"), nil)
	assert.ErrorIs(t, err, secrets.ErrDecrypt)
}

func TestNewBox_LlaveCorta(t *testing.T) {
	_, err := secrets.NewBox("corta")
	assert.Error(t, err)
}

func TestZero(t *testing.T) {
	buf := []byte("sensible")
	secrets.Zero(buf)
	assert.Equal(t, make([]byte, 8), buf)
}
