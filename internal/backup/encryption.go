package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	opserrors "logdb-backup/internal/errors"
)

const (
	saltSize         = 16
	pbkdf2Iterations = 100000
	keySize          = 32
)

// EncryptionManager encrypts artifacts with AES-256-GCM. The key is
// derived from a passphrase with PBKDF2-SHA256; the salt and nonce are
// stored as a prefix of the encrypted file.
type EncryptionManager struct {
	passphraseEnv string
}

// NewEncryptionManager creates an encryption manager reading its
// passphrase from the named environment variable.
func NewEncryptionManager(passphraseEnv string) *EncryptionManager {
	return &EncryptionManager{passphraseEnv: passphraseEnv}
}

func (em *EncryptionManager) passphrase() ([]byte, error) {
	pass := os.Getenv(em.passphraseEnv)
	if pass == "" {
		return nil, opserrors.NewEncryptionError("encryption passphrase environment variable "+em.passphraseEnv+" is empty", nil)
	}
	return []byte(pass), nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdf2Iterations, keySize, sha256.New)
}

// EncryptFile encrypts src into dst. GCM authenticates the whole
// payload, so decryption doubles as an integrity check.
func (em *EncryptionManager) EncryptFile(src, dst string) error {
	pass, err := em.passphrase()
	if err != nil {
		return err
	}

	plaintext, err := os.ReadFile(src)
	if err != nil {
		return opserrors.NewEncryptionError("failed to read file for encryption", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return opserrors.NewEncryptionError("failed to generate salt", err)
	}

	block, err := aes.NewCipher(deriveKey(pass, salt))
	if err != nil {
		return opserrors.NewEncryptionError("failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return opserrors.NewEncryptionError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return opserrors.NewEncryptionError("failed to generate nonce", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	if err := os.WriteFile(dst, out, 0o640); err != nil {
		return opserrors.NewEncryptionError("failed to write encrypted file", err)
	}
	return nil
}

// DecryptFile decrypts src into dst.
func (em *EncryptionManager) DecryptFile(src, dst string) error {
	pass, err := em.passphrase()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return opserrors.NewEncryptionError("failed to read file for decryption", err)
	}
	if len(data) < saltSize {
		return opserrors.NewEncryptionError("encrypted file is truncated", nil)
	}

	salt := data[:saltSize]
	block, err := aes.NewCipher(deriveKey(pass, salt))
	if err != nil {
		return opserrors.NewEncryptionError("failed to create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return opserrors.NewEncryptionError("failed to create GCM", err)
	}

	if len(data) < saltSize+gcm.NonceSize() {
		return opserrors.NewEncryptionError("encrypted file is truncated", nil)
	}
	nonce := data[saltSize : saltSize+gcm.NonceSize()]
	ciphertext := data[saltSize+gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return opserrors.NewEncryptionError("decryption failed, wrong passphrase or corrupted artifact", err)
	}

	if err := os.WriteFile(dst, plaintext, 0o640); err != nil {
		return opserrors.NewEncryptionError("failed to write decrypted file", err)
	}
	return nil
}
