package cert

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesBundle(t *testing.T) {
	paths := DefaultPaths(filepath.Join(t.TempDir(), "certs"))

	_, err := New(paths, []string{"kami.local", "10.1.2.3"})
	require.NoError(t, err)

	pair, err := tls.LoadX509KeyPair(paths.ServerCert, paths.ServerKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "kami.local", leaf.Subject.CommonName)
	assert.Equal(t, []string{"kami.local"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "10.1.2.3", leaf.IPAddresses[0].String())

	caCert, _, err := loadPair(paths.CACert, paths.CAKey)
	require.NoError(t, err)
	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	_, err = leaf.Verify(x509.VerifyOptions{DNSName: "kami.local", Roots: roots})
	assert.NoError(t, err)

	info, err := os.Stat(paths.CAKey)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestNew_ReusesExistingFiles(t *testing.T) {
	paths := DefaultPaths(t.TempDir())
	_, err := New(paths, nil)
	require.NoError(t, err)
	before, err := os.ReadFile(paths.ServerCert)
	require.NoError(t, err)

	_, err = New(paths, nil)
	require.NoError(t, err)
	after, err := os.ReadFile(paths.ServerCert)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIssueClient(t *testing.T) {
	paths := DefaultPaths(t.TempDir())
	svc, err := New(paths, nil)
	require.NoError(t, err)

	certPath, keyPath, err := svc.IssueClient("dashboard")
	require.NoError(t, err)

	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "dashboard", leaf.Subject.CommonName)
	assert.Equal(t, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, leaf.ExtKeyUsage)
}

func TestIssueClient_MissingCA(t *testing.T) {
	svc := &Service{paths: DefaultPaths(t.TempDir())}
	_, _, err := svc.IssueClient("x")
	assert.Error(t, err)
}
