package origin

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"net/http"
	"strings"
)

// signatureScheme pairs a signature header with its digest algorithm.
type signatureScheme struct {
	header string
	prefix string
	hash   func() hash.Hash
}

func sha256Scheme(header string) signatureScheme {
	return signatureScheme{header: header, prefix: "sha256=", hash: sha256.New}
}

func sha1Scheme(header string) signatureScheme {
	return signatureScheme{header: header, prefix: "sha1=", hash: sha1.New}
}

// verifyHMAC checks the first present scheme in order of preference.
// Only the strongest present header is considered; a weaker header is never
// consulted when a stronger one fails.
func verifyHMAC(h http.Header, secret string, body []byte, schemes ...signatureScheme) error {
	for _, s := range schemes {
		signature, ok := headerValue(h, s.header)
		if !ok {
			continue
		}
		return compareHMAC(s, body, signature, secret)
	}
	return missing(schemes[len(schemes)-1].header)
}

// compareHMAC computes HMAC(secret, body) and compares it with the header
// value using constant-time comparison (crypto/subtle) to prevent timing attacks.
//
// Supported formats:
//   - "<algo>=<hex>" (GitHub style)
//   - "<hex>" (plain hex)
//
// All failures return ErrInvalidSignature to prevent information leakage.
func compareHMAC(s signatureScheme, body []byte, signature, secret string) error {
	mac := hmac.New(s.hash, []byte(secret))
	mac.Write(body)
	expectedMAC := mac.Sum(nil)

	actualMAC, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), s.prefix))
	if err != nil {
		return ErrInvalidSignature
	}

	if subtle.ConstantTimeCompare(expectedMAC, actualMAC) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// SignSHA256 returns the "sha256=<hex>" header value for body under secret.
func SignSHA256(body []byte, secret string) string {
	return "sha256=" + computeSignature(sha256.New, body, secret)
}

// SignSHA1 returns the "sha1=<hex>" header value for body under secret.
func SignSHA1(body []byte, secret string) string {
	return "sha1=" + computeSignature(sha1.New, body, secret)
}

func computeSignature(fn func() hash.Hash, body []byte, secret string) string {
	mac := hmac.New(fn, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
