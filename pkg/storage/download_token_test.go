package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadTokenRoundTrip(t *testing.T) {
	signer := NewDownloadTokenSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	jobID, relPath, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "reports/job-1.csv", relPath)
}

func TestDownloadTokenRejectsTampering(t *testing.T) {
	signer := NewDownloadTokenSigner("secret", time.Minute)
	token, _, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	assert.Error(t, err)

	// Swapping the job id invalidates the signature.
	parts := strings.SplitN(token, ".", 2)
	_, _, _, err = signer.Parse("job-2."+parts[1], false)
	assert.Error(t, err)

	other := NewDownloadTokenSigner("other-secret", time.Minute)
	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}

func TestDownloadTokenExpiry(t *testing.T) {
	signer := NewDownloadTokenSigner("secret", -time.Minute)
	token, _, err := signer.Generate("job-1", "reports/job-1.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	assert.Error(t, err)

	_, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "reports/job-1.csv", relPath)
}

func TestDownloadTokenRequiresSecret(t *testing.T) {
	signer := NewDownloadTokenSigner("", time.Minute)
	_, _, err := signer.Generate("job-1", "reports/job-1.csv")
	assert.Error(t, err)
}
