package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassphraseEnv = "LOGDB_BACKUP_TEST_PASSPHRASE"

func TestEncryptionRoundTrip(t *testing.T) {
	t.Setenv(testPassphraseEnv, "correct horse battery staple")

	dir := t.TempDir()
	src := filepath.Join(dir, "artifact.gz")
	encrypted := filepath.Join(dir, "artifact.gz.enc")
	decrypted := filepath.Join(dir, "artifact.gz.dec")

	payload := []byte("compressed dump bytes")
	require.NoError(t, os.WriteFile(src, payload, 0o640))

	em := NewEncryptionManager(testPassphraseEnv)
	require.NoError(t, em.EncryptFile(src, encrypted))

	ciphertext, err := os.ReadFile(encrypted)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "compressed dump bytes")

	require.NoError(t, em.DecryptFile(encrypted, decrypted))
	out, err := os.ReadFile(decrypted)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	t.Setenv(testPassphraseEnv, "first passphrase")

	dir := t.TempDir()
	src := filepath.Join(dir, "artifact")
	encrypted := filepath.Join(dir, "artifact.enc")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o640))

	em := NewEncryptionManager(testPassphraseEnv)
	require.NoError(t, em.EncryptFile(src, encrypted))

	t.Setenv(testPassphraseEnv, "second passphrase")
	err := em.DecryptFile(encrypted, filepath.Join(dir, "artifact.dec"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptMissingPassphrase(t *testing.T) {
	t.Setenv(testPassphraseEnv, "")

	em := NewEncryptionManager(testPassphraseEnv)
	err := em.EncryptFile("in", "out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestDecryptTruncatedFile(t *testing.T) {
	t.Setenv(testPassphraseEnv, "pass")

	dir := t.TempDir()
	src := filepath.Join(dir, "truncated.enc")
	require.NoError(t, os.WriteFile(src, []byte("short"), 0o640))

	em := NewEncryptionManager(testPassphraseEnv)
	err := em.DecryptFile(src, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}
