// Package truststoretest builds certificates and trust store files for tests.
package truststoretest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Password is the store secret used by the helpers in this package.
const Password = "changeit"

// Cert describes one certificate entry to put in a store.
type Cert struct {
	Alias     string
	NotBefore time.Time
	NotAfter  time.Time

	// CommonName sets the subject CN; empty means Alias.
	CommonName string

	// Type overrides the JKS certificate type; empty means "X.509".
	Type string
}

// NewCertificate returns a self-signed certificate valid between notBefore
// and notAfter.
func NewCertificate(t *testing.T, cn string, notBefore, notAfter time.Time) *x509.Certificate {
	t.Helper()
	cert, _ := newCertificateAndKey(t, cn, notBefore, notAfter)
	return cert
}

func newCertificateAndKey(t *testing.T, cn string, notBefore, notAfter time.Time) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, key
}

func (c Cert) cn() string {
	if c.CommonName != "" {
		return c.CommonName
	}
	return c.Alias
}

// WriteJKS writes a JKS trust store holding one trusted-certificate entry
// per cert and returns its path.
func WriteJKS(t *testing.T, password string, certs ...Cert) string {
	t.Helper()
	ks := keystore.New()
	for _, c := range certs {
		typ := c.Type
		if typ == "" {
			typ = "X.509"
		}
		cert := NewCertificate(t, c.cn(), c.NotBefore, c.NotAfter)
		err := ks.SetTrustedCertificateEntry(c.Alias, keystore.TrustedCertificateEntry{
			CreationTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Certificate:  keystore.Certificate{Type: typ, Content: cert.Raw},
		})
		if err != nil {
			t.Fatalf("set entry %q: %v", c.Alias, err)
		}
	}

	path := filepath.Join(t.TempDir(), "truststore.jks")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jks: %v", err)
	}
	defer f.Close()
	if err := ks.Store(f, []byte(password)); err != nil {
		t.Fatalf("store jks: %v", err)
	}
	return path
}

// WritePKCS12 writes a legacy-encrypted PKCS#12 trust store and returns its
// path. Entries with an empty alias carry no friendlyName.
func WritePKCS12(t *testing.T, password string, certs ...Cert) string {
	t.Helper()
	return writePKCS12(t, gopkcs12.Legacy, password, certs)
}

// WriteModernPKCS12 writes a PKCS#12 trust store protected with PBES2/AES
// and a SHA-256 MAC.
func WriteModernPKCS12(t *testing.T, password string, certs ...Cert) string {
	t.Helper()
	return writePKCS12(t, gopkcs12.Modern, password, certs)
}

func writePKCS12(t *testing.T, enc *gopkcs12.Encoder, password string, certs []Cert) string {
	t.Helper()
	var entries []gopkcs12.TrustStoreEntry
	for _, c := range certs {
		entries = append(entries, gopkcs12.TrustStoreEntry{
			Cert:         NewCertificate(t, c.cn(), c.NotBefore, c.NotAfter),
			FriendlyName: c.Alias,
		})
	}
	data, err := enc.EncodeTrustStoreEntries(entries, password)
	if err != nil {
		t.Fatalf("encode pkcs12: %v", err)
	}
	return WriteFile(t, "truststore.p12", data)
}

// WritePKCS12KeyStore writes a PKCS#12 key store holding a private key, its
// leaf certificate and the given CA certificates, as keytool -genkeypair and
// openssl pkcs12 -export produce.
func WritePKCS12KeyStore(t *testing.T, password string, leaf Cert, cas ...Cert) string {
	t.Helper()
	cert, key := newCertificateAndKey(t, leaf.cn(), leaf.NotBefore, leaf.NotAfter)
	var caCerts []*x509.Certificate
	for _, c := range cas {
		caCerts = append(caCerts, NewCertificate(t, c.cn(), c.NotBefore, c.NotAfter))
	}
	data, err := gopkcs12.Modern.Encode(key, cert, caCerts, password)
	if err != nil {
		t.Fatalf("encode pkcs12 key store: %v", err)
	}
	return WriteFile(t, "keystore.p12", data)
}

// WriteFile writes data to a new file in a temp dir and returns its path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
