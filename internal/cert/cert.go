// Package cert issues a self-signed PKI for the event stream's TLS listener:
// one CA, the server leaf and optional client leaves for mTLS subscribers.
package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	caValidity   = 10 * 365 * 24 * time.Hour
	leafValidity = 365 * 24 * time.Hour
	organization = "Kami"
)

type Paths struct {
	CACert     string
	CAKey      string
	ServerCert string
	ServerKey  string
}

// DefaultPaths lays the bundle out under dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		CACert:     filepath.Join(dir, "ca.crt"),
		CAKey:      filepath.Join(dir, "ca.key"),
		ServerCert: filepath.Join(dir, "server.crt"),
		ServerKey:  filepath.Join(dir, "server.key"),
	}
}

type Service struct {
	paths Paths
	hosts []string
	ips   []net.IP
}

// New generates whatever part of the bundle is missing on disk. Existing
// files are reused as-is.
func New(paths Paths, hosts []string) (*Service, error) {
	s := &Service{paths: paths}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			s.ips = append(s.ips, ip)
		} else if h != "" {
			s.hosts = append(s.hosts, h)
		}
	}
	if len(s.hosts) == 0 {
		s.hosts = []string{"localhost"}
	}
	if len(s.ips) == 0 {
		s.ips = []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}
	}

	if err := s.ensure(); err != nil {
		return nil, fmt.Errorf("failed to ensure certificates: %w", err)
	}
	return s, nil
}

func (s *Service) Paths() Paths {
	return s.paths
}

func (s *Service) ensure() error {
	var (
		caCert *x509.Certificate
		caKey  *ecdsa.PrivateKey
		err    error
	)

	if fileExists(s.paths.CACert) && fileExists(s.paths.CAKey) {
		slog.Debug("Using existing CA certificate", "cert_path", s.paths.CACert)
		caCert, caKey, err = loadPair(s.paths.CACert, s.paths.CAKey)
		if err != nil {
			return fmt.Errorf("failed to load CA: %w", err)
		}
	} else {
		slog.Info("CA certificate not found, generating new CA", "cert_path", s.paths.CACert)
		caCert, caKey, err = issue(&x509.Certificate{
			Subject:               pkix.Name{Organization: []string{organization}, CommonName: "Kami Root CA"},
			NotAfter:              time.Now().Add(caValidity),
			KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
			BasicConstraintsValid: true,
			IsCA:                  true,
			MaxPathLenZero:        true,
		}, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to generate CA: %w", err)
		}
		if err := writePair(caCert, caKey, s.paths.CACert, s.paths.CAKey); err != nil {
			return err
		}
	}

	if fileExists(s.paths.ServerCert) && fileExists(s.paths.ServerKey) {
		slog.Debug("Using existing server certificate", "cert_path", s.paths.ServerCert)
		return nil
	}

	slog.Info("Generating server certificate", "cert_path", s.paths.ServerCert, "hosts", s.hosts, "ips", s.ips)
	serverCert, serverKey, err := issue(&x509.Certificate{
		Subject:     pkix.Name{Organization: []string{organization}, CommonName: s.hosts[0]},
		NotAfter:    time.Now().Add(leafValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    s.hosts,
		IPAddresses: s.ips,
	}, caCert, caKey)
	if err != nil {
		return fmt.Errorf("failed to generate server certificate: %w", err)
	}
	return writePair(serverCert, serverKey, s.paths.ServerCert, s.paths.ServerKey)
}

// IssueClient signs a client certificate for name and writes it next to the
// CA as <name>.crt / <name>.key.
func (s *Service) IssueClient(name string) (certPath, keyPath string, err error) {
	caCert, caKey, err := loadPair(s.paths.CACert, s.paths.CAKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to load CA: %w", err)
	}

	clientCert, clientKey, err := issue(&x509.Certificate{
		Subject:     pkix.Name{Organization: []string{organization}, CommonName: name},
		NotAfter:    time.Now().Add(leafValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}, caCert, caKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate client certificate: %w", err)
	}

	dir := filepath.Dir(s.paths.CACert)
	certPath = filepath.Join(dir, name+".crt")
	keyPath = filepath.Join(dir, name+".key")
	if err := writePair(clientCert, clientKey, certPath, keyPath); err != nil {
		return "", "", err
	}
	slog.Info("Issued client certificate", "name", name, "cert_path", certPath)
	return certPath, keyPath, nil
}

// issue signs template with parent. A nil parent self-signs.
func issue(template, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	template.SerialNumber = serial
	template.NotBefore = time.Now().Add(-time.Minute)

	if parent == nil {
		parent, parentKey = template, key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, key, nil
}

func loadPair(certPath, keyPath string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	certBytes, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	certBlock, _ := pem.Decode(certBytes)
	if certBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read key: %w", err)
	}
	keyBlock, _ := pem.Decode(keyBytes)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode key PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("key is not an ECDSA private key")
	}
	return cert, key, nil
}

func writePair(cert *x509.Certificate, key *ecdsa.PrivateKey, certPath, keyPath string) error {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	if err := writePEM(certPath, "CERTIFICATE", cert.Raw, 0644); err != nil {
		return err
	}
	return writePEM(keyPath, "PRIVATE KEY", keyBytes, 0600)
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
