package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// downloadPurpose is folded into every signature so a token minted here
// can never be replayed against another signing context sharing the
// same secret.
const downloadPurpose = "report-download"

// DownloadTokenSigner mints and verifies the bearer tokens that let a
// finished report file be fetched from the public download route
// without a session. A token binds one report job to one relative file
// path under the report store; both are covered by an HMAC-SHA256
// signature, so neither can be swapped after issuance.
type DownloadTokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewDownloadTokenSigner builds a signer. A zero TTL falls back to 24h.
func NewDownloadTokenSigner(secret string, ttl time.Duration) *DownloadTokenSigner {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadTokenSigner{secret: []byte(secret), ttl: ttl}
}

// Generate issues a token granting access to the given report file.
func (s *DownloadTokenSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, errors.New("job id and file path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("download token secret is not configured")
	}
	expiresAt := time.Now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	path := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{jobID, exp, path, s.sign(jobID, exp, path)}, ".")
	return token, expiresAt, nil
}

// Parse verifies the signature before anything else, then the expiry,
// and returns the claims. With allowExpired set the expiry check is
// skipped, which lets housekeeping map stale tokens back to files.
func (s *DownloadTokenSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, errors.New("malformed download token")
	}
	if !hmac.Equal([]byte(s.sign(parts[0], parts[1], parts[2])), []byte(parts[3])) {
		return "", "", time.Time{}, errors.New("download token signature mismatch")
	}
	expUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, errors.New("malformed download token")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, errors.New("download token expired")
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", "", time.Time{}, errors.New("malformed download token")
	}
	return parts[0], string(rawPath), expiresAt, nil
}

func (s *DownloadTokenSigner) sign(jobID, exp, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s|%s", downloadPurpose, jobID, exp, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}
