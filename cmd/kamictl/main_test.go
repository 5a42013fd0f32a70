package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "hash-password", "s3cretpass")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, users.CheckPassword("s3cretpass", hash))
}

func TestToken(t *testing.T) {
	out, err := execute(t, "token", "--secret", "cli-secret", "--id", "u-1", "--name", "Neema", "--role", "supervisor")
	require.NoError(t, err)

	claims, err := auth.ValidateToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "supervisor", claims.Role)
}

func TestToken_RejectsUnknownRole(t *testing.T) {
	_, err := execute(t, "token", "--secret", "cli-secret", "--id", "u-1", "--role", "pilot")
	assert.ErrorIs(t, err, users.ErrInvalidRole)
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	dbURL = ""
	_, err := execute(t, "migrate", "--db-url", "")
	assert.ErrorContains(t, err, "db-url")
}

func TestCert_WritesBundle(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "cert", "--dir", dir, "--client", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "ca.crt"))
	assert.FileExists(t, filepath.Join(dir, "server.key"))
	assert.FileExists(t, filepath.Join(dir, "dashboard.crt"))
}

func TestMigrateSubcommands_RequireDatabase(t *testing.T) {
	dbURL = ""
	for _, sub := range []string{"down", "status"} {
		_, err := execute(t, "migrate", sub, "--db-url", "")
		assert.ErrorContains(t, err, "db-url", sub)
	}
}
