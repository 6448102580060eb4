// Package truststore loads password-protected certificate containers and
// enumerates their certificate entries.
//
// Load(path, secret) reads the whole container into memory, detects its
// format from the leading magic bytes and returns one Entry per alias:
//   - jks    — Java KeyStore (magic 0xFEEDFEED), decoded with keystore-go.
//     Trusted-certificate entries yield their certificate; private-key
//     entries yield the first certificate of their chain.
//   - pkcs12 — PKCS#12 trust store (DER SEQUENCE), decoded with
//     sslmate/go-pkcs12. Every trusted certificate yields an entry named by
//     its subject common name, or by its SHA-1 fingerprint when the name is
//     empty or collides with an earlier entry.
//
// Aliases are lowercased and entries are returned sorted by alias, so the
// enumeration is identical for repeated loads of the same file.
//
// Failures are reported through the sentinels ErrStoreNotFound,
// ErrStoreDecryptionFailed and ErrUnsupportedFormat. A load never returns a
// partial result. Entry.Certificate interprets an entry as X.509 and fails
// with ErrCertificateTypeMismatch for anything else.
package truststore
