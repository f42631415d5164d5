// Package cert issues the CA, server and client certificates used by the
// solver service's mutual TLS.
package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// Organization is written into every issued subject
const Organization = "cantiming"

// DefaultKeyBits is the RSA key size used for issued keys
const DefaultKeyBits = 2048

// Issuer signs server and client certificates with its CA
type Issuer struct {
	caCert  *x509.Certificate
	caKey   *rsa.PrivateKey
	keyBits int
}

// NewIssuer creates a new issuer with a self-signed CA
func NewIssuer(keyBits int) (*Issuer, error) {
	if keyBits == 0 {
		keyBits = DefaultKeyBits
	}

	caKey, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	caTemplate := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{Organization},
			CommonName:   Organization + " CA",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour * 10), // 10 years
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	caCert, err := x509.ParseCertificate(caCertDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	return &Issuer{
		caCert:  caCert,
		caKey:   caKey,
		keyBits: keyBits,
	}, nil
}

// CA returns the CA certificate
func (i *Issuer) CA() *x509.Certificate {
	return i.caCert
}

// SaveCA saves the CA certificate and key to files
func (i *Issuer) SaveCA(certPath, keyPath string) error {
	if err := writePEM(certPath, "CERTIFICATE", i.caCert.Raw, 0o644); err != nil {
		return fmt.Errorf("failed to write CA cert: %w", err)
	}
	if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(i.caKey), 0o600); err != nil {
		return fmt.Errorf("failed to write CA key: %w", err)
	}
	return nil
}

// LoadCA loads CA certificate and key from files
func LoadCA(certPath, keyPath string) (*Issuer, error) {
	certBlock, err := readPEM(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}

	caCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA cert: %w", err)
	}

	keyBlock, err := readPEM(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA key: %w", err)
	}

	caKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA key: %w", err)
	}

	return &Issuer{
		caCert:  caCert,
		caKey:   caKey,
		keyBits: caKey.N.BitLen(),
	}, nil
}

// IssueServer generates a server certificate valid for hosts, which may be
// DNS names or IP addresses
func (i *Issuer) IssueServer(hosts []string, validFor time.Duration) (*Certificate, error) {
	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{Organization},
			CommonName:   "cantiming server",
		},
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	if len(hosts) > 0 {
		template.Subject.CommonName = hosts[0]
	}
	return i.issue(template, validFor)
}

// IssueClient generates a client certificate for name
func (i *Issuer) IssueClient(name string, validFor time.Duration) (*Certificate, error) {
	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{Organization},
			CommonName:   name,
		},
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	return i.issue(template, validFor)
}

func (i *Issuer) issue(template *x509.Certificate, validFor time.Duration) (*Certificate, error) {
	if validFor <= 0 {
		validFor = 365 * 24 * time.Hour
	}

	key, err := rsa.GenerateKey(rand.Reader, i.keyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	if template.SerialNumber, err = newSerial(); err != nil {
		return nil, err
	}
	template.NotBefore = time.Now().Add(-time.Minute)
	template.NotAfter = time.Now().Add(validFor)
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment

	certDER, err := x509.CreateCertificate(rand.Reader, template, i.caCert, &key.PublicKey, i.caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &Certificate{
		Certificate: cert,
		PrivateKey:  key,
		IssuedAt:    time.Now(),
	}, nil
}

// Verify checks that cert chains to the CA for the given usage
func (i *Issuer) Verify(cert *x509.Certificate, usage x509.ExtKeyUsage) error {
	return Verify(i.caCert, cert, usage)
}

// Verify checks that cert chains to ca for the given usage. An
// x509.ExtKeyUsageAny usage accepts both server and client certificates.
func Verify(ca, cert *x509.Certificate, usage x509.ExtKeyUsage) error {
	roots := x509.NewCertPool()
	roots.AddCert(ca)

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{usage},
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("certificate verification failed: %w", err)
	}

	return nil
}

// Certificate represents an issued certificate
type Certificate struct {
	*x509.Certificate
	PrivateKey *rsa.PrivateKey
	IssuedAt   time.Time
}

// Save saves the certificate and, when keyPath is set, its key to files
func (c *Certificate) Save(certPath, keyPath string) error {
	if err := writePEM(certPath, "CERTIFICATE", c.Raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cert: %w", err)
	}

	if keyPath != "" {
		if err := writePEM(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(c.PrivateKey), 0o600); err != nil {
			return fmt.Errorf("failed to write key: %w", err)
		}
	}

	return nil
}

// PEM returns the certificate as PEM-encoded string
func (c *Certificate) PEM() string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: c.Raw,
	}))
}

// LoadCertificate reads a PEM certificate file
func LoadCertificate(path string) (*x509.Certificate, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- path is provided by the user
	if err != nil {
		return err
	}

	if err := pem.Encode(out, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = out.Close()
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	// O_CREATE does not change the mode of an existing file
	return os.Chmod(path, perm)
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is provided by the user
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM data in %s", path)
	}
	return block, nil
}
