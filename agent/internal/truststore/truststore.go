package truststore

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Failure kinds returned by Load and Entry.Certificate. Match with errors.Is.
var (
	ErrStoreNotFound           = errors.New("trust store not found")
	ErrStoreDecryptionFailed   = errors.New("trust store decryption failed")
	ErrUnsupportedFormat       = errors.New("unsupported trust store format")
	ErrCertificateTypeMismatch = errors.New("entry is not an X.509 certificate")
)

// CertTypeX509 is the certificate type string carried by X.509 entries.
const CertTypeX509 = "X.509"

// Format selects the container decoder.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatJKS    Format = "jks"
	FormatPKCS12 Format = "pkcs12"
)

var (
	magicJKS   = []byte{0xfe, 0xed, 0xfe, 0xed}
	magicJCEKS = []byte{0xce, 0xce, 0xce, 0xce}
)

// Entry is one aliased certificate from a trust store.
type Entry struct {
	// Alias is the lowercased entry name, unique within its store.
	Alias string

	// Type is the certificate type recorded in the container.
	Type string

	// Raw is the encoded certificate (DER for X.509).
	Raw []byte
}

// Certificate decodes the entry as an X.509 certificate.
func (e Entry) Certificate() (*x509.Certificate, error) {
	if e.Type != CertTypeX509 {
		return nil, fmt.Errorf("%w: alias %q has type %q", ErrCertificateTypeMismatch, e.Alias, e.Type)
	}
	cert, err := x509.ParseCertificate(e.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: alias %q: %w", ErrCertificateTypeMismatch, e.Alias, err)
	}
	return cert, nil
}

// Load reads the container at path, detecting its format, and returns its
// entries sorted by alias.
func Load(path, secret string) ([]Entry, error) {
	return LoadFormat(path, secret, FormatAuto)
}

// LoadFormat is Load with an explicit container format. FormatAuto (or the
// empty string) sniffs the format from the file contents.
func LoadFormat(path, secret string, format Format) ([]Entry, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if format == "" || format == FormatAuto {
		format, err = sniff(data)
		if err != nil {
			return nil, fmt.Errorf("truststore: %s: %w", path, err)
		}
	}

	var entries []Entry
	switch format {
	case FormatJKS:
		entries, err = decodeJKS(data, secret)
	case FormatPKCS12:
		entries, err = decodePKCS12(data, secret)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("truststore: %s: %w", path, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Alias < entries[j].Alias })
	for i := 1; i < len(entries); i++ {
		if entries[i].Alias == entries[i-1].Alias {
			return nil, fmt.Errorf("truststore: %s: %w: duplicate alias %q",
				path, ErrStoreDecryptionFailed, entries[i].Alias)
		}
	}
	return entries, nil
}

// Aliases returns the aliases of entries in order.
func Aliases(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Alias
	}
	return out
}

// readFile reads the whole container and releases the handle on every path.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("truststore: %w: %w", ErrStoreNotFound, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("truststore: %w: read %s: %w", ErrStoreNotFound, path, err)
	}
	return data, nil
}

// sniff picks a decoder from the leading bytes of the container.
func sniff(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, magicJKS):
		return FormatJKS, nil
	case bytes.HasPrefix(data, magicJCEKS):
		return "", fmt.Errorf("%w: JCEKS", ErrUnsupportedFormat)
	case len(data) > 0 && data[0] == 0x30:
		return FormatPKCS12, nil
	default:
		return "", fmt.Errorf("%w: unrecognised header", ErrUnsupportedFormat)
	}
}

func normalizeAlias(alias string) string {
	return strings.ToLower(alias)
}
