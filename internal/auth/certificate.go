// Package auth implements the certificate client-assertion grant:
// a password-protected PKCS#12 bundle is decoded in-process, its RSA key
// signs a short-lived JWT assertion, and the assertion is exchanged for a
// bearer token at the tenant's token endpoint.
package auth

import (
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // x5t is defined over the SHA-1 certificate fingerprint
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// ErrCredential indicates unusable credential material: a wrong bundle
// password or a bundle without an RSA private key. It is fatal input —
// retrying cannot succeed and no network call is made.
var ErrCredential = errors.New("auth: invalid credential material")

// DecodeBundle decrypts a PKCS#12 certificate bundle and extracts the RSA
// private key and leaf certificate. Decoding happens entirely in memory;
// no temp files are written.
func DecodeBundle(bundle []byte, password string) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, cert, _, err := pkcs12.DecodeChain(bundle, password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decoding certificate bundle: %v", ErrCredential, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: bundle holds a %T key, need RSA", ErrCredential, key)
	}

	return rsaKey, cert, nil
}

// Thumbprint returns the base64url-encoded SHA-1 fingerprint of the
// certificate, the x5t value JWT headers expect. Used as a fallback when
// the caller does not supply a thumbprint alongside the bundle.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw) //nolint:gosec // x5t is defined over SHA-1

	return base64.RawURLEncoding.EncodeToString(sum[:])
}
