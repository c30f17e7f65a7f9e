package keys

import (
	"bytes"
	"io"
	"os"

	"filippo.io/age"

	"github.com/mrz1836/ethdeploy/internal/fileutil"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// keyFilePerm is the permission of written key files.
const keyFilePerm = 0o600

// Encrypt encrypts plaintext using age with a passphrase recipient.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"reason": "passphrase must not be empty",
		})
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, deployerr.Wrap(err, "creating scrypt recipient")
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, deployerr.Wrap(err, "initializing encryption")
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, deployerr.Wrap(err, "writing encrypted data")
	}
	if err := w.Close(); err != nil {
		return nil, deployerr.Wrap(err, "finalizing encryption")
	}

	return buf.Bytes(), nil
}

// Decrypt decrypts age ciphertext with a passphrase identity. A wrong
// passphrase and a corrupt file both yield ErrDecryptionFailed.
func Decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrDecryptionFailed, err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// SaveFile writes the key hex-encoded and age-encrypted to path with 0600
// permissions. An existing file is only replaced when overwrite is set.
func SaveFile(path string, k *Key, passphrase string, overwrite bool) error {
	plaintext := k.hex()
	defer zero(plaintext)

	ciphertext, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return err
	}

	if err := fileutil.WriteNew(path, ciphertext, keyFilePerm, overwrite); err != nil {
		if deployerr.Is(err, fileutil.ErrExists) {
			return deployerr.WithSuggestion(
				deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{"path": path, "reason": "key file exists"}),
				"pass --force to replace it",
			)
		}
		return deployerr.Wrap(err, "writing key file")
	}
	return nil
}

// LoadFile decrypts an age key file written by SaveFile.
func LoadFile(path, passphrase string) (*Key, error) {
	ciphertext, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, deployerr.WithDetails(deployerr.ErrKeyNotFound, map[string]string{"path": path})
		}
		return nil, deployerr.Wrap(err, "reading key file")
	}

	plaintext, err := Decrypt(ciphertext, passphrase)
	if err != nil {
		return nil, deployerr.WithDetails(err, map[string]string{"path": path})
	}
	defer zero(plaintext)

	k, err := FromHex(string(bytes.TrimSpace(plaintext)))
	if err != nil {
		return nil, err
	}
	k.origin = "file"
	return k, nil
}
