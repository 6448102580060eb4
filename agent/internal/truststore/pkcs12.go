package truststore

import (
	"crypto/sha1" //nolint:gosec // fingerprint only
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// decodePKCS12 decrypts a PKCS#12 container with secret. Certificate-only
// trust stores yield every certificate; a container holding a private key
// yields its leaf certificate followed by its CA certificates.
//
// The decoder does not surface bag attributes, so entries are named by the
// certificate's subject common name, or by its SHA-1 fingerprint when the
// name is empty or already taken.
func decodePKCS12(data []byte, secret string) ([]Entry, error) {
	certs, err := pkcs12.DecodeTrustStore(data, secret)
	if err != nil && !errors.Is(err, pkcs12.ErrIncorrectPassword) {
		// Not a trust store; try it as a key store before giving up.
		_, leaf, caCerts, chainErr := pkcs12.DecodeChain(data, secret)
		switch {
		case chainErr == nil:
			certs, err = append([]*x509.Certificate{leaf}, caCerts...), nil
		case errors.Is(chainErr, pkcs12.ErrIncorrectPassword):
			err = chainErr
		}
	}
	if err != nil {
		var nie pkcs12.NotImplementedError
		if errors.As(err, &nie) {
			return nil, fmt.Errorf("%w: pkcs12: %w", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: pkcs12: %w", ErrStoreDecryptionFailed, err)
	}

	seen := make(map[string]bool, len(certs))
	entries := make([]Entry, 0, len(certs))
	for _, c := range certs {
		alias := normalizeAlias(c.Subject.CommonName)
		if alias == "" || seen[alias] {
			sum := sha1.Sum(c.Raw) //nolint:gosec
			alias = hex.EncodeToString(sum[:])
		}
		seen[alias] = true
		entries = append(entries, Entry{Alias: alias, Type: CertTypeX509, Raw: c.Raw})
	}
	return entries, nil
}
