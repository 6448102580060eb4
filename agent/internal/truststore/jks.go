package truststore

import (
	"bytes"
	"fmt"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// decodeJKS verifies the keystore digest with secret and collects one entry
// per alias. A digest mismatch means a wrong secret or a damaged file; the
// two are indistinguishable in JKS.
func decodeJKS(data []byte, secret string) ([]Entry, error) {
	ks := keystore.New(keystore.WithOrderedAliases())
	if err := ks.Load(bytes.NewReader(data), []byte(secret)); err != nil {
		return nil, fmt.Errorf("%w: jks: %w", ErrStoreDecryptionFailed, err)
	}

	var entries []Entry
	for _, alias := range ks.Aliases() {
		switch {
		case ks.IsTrustedCertificateEntry(alias):
			tce, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				return nil, fmt.Errorf("%w: jks alias %q: %w", ErrStoreDecryptionFailed, alias, err)
			}
			entries = append(entries, jksEntry(alias, tce.Certificate))

		case ks.IsPrivateKeyEntry(alias):
			chain, err := ks.GetPrivateKeyEntryCertificateChain(alias)
			if err != nil {
				return nil, fmt.Errorf("%w: jks alias %q: %w", ErrStoreDecryptionFailed, alias, err)
			}
			if len(chain) == 0 {
				entries = append(entries, Entry{Alias: normalizeAlias(alias)})
				continue
			}
			entries = append(entries, jksEntry(alias, chain[0]))
		}
	}
	return entries, nil
}

func jksEntry(alias string, c keystore.Certificate) Entry {
	typ := c.Type
	// keystore-go examples write "X509"; Java writes "X.509".
	if typ == "X509" {
		typ = CertTypeX509
	}
	return Entry{Alias: normalizeAlias(alias), Type: typ, Raw: c.Content}
}
