package tls

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientAuthType(t *testing.T) {
	cases := map[string]tls.ClientAuthType{
		"":        tls.NoClientCert,
		"none":    tls.NoClientCert,
		"request": tls.RequestClientCert,
		"require": tls.RequireAndVerifyClientCert,
	}
	for in, want := range cases {
		got, err := ParseClientAuthType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseClientAuthType("always")
	assert.Error(t, err)
}

func TestLoadClientCredentials_SystemRoots(t *testing.T) {
	creds, err := LoadClientCredentials("", "", "", "events.kami.local")
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)
}

func TestLoadClientCredentials_BadCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := LoadClientCredentials("", "", path, "")
	assert.Error(t, err)

	_, err = LoadClientCredentials("", "", filepath.Join(t.TempDir(), "missing.pem"), "")
	assert.Error(t, err)
}

func TestLoadServerCredentials_MissingFiles(t *testing.T) {
	_, err := LoadServerCredentials("missing.crt", "missing.key", "", tls.NoClientCert)
	assert.Error(t, err)
}
