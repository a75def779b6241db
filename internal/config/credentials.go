package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	credentialKeyIterations = 100000
	credentialKeySalt       = "shadowfix-logon-credential-salt-v1"
)

// credentialCodec encrypts the order-entry session logon password at
// rest using AES-256-GCM with a key derived from the operator-supplied
// master encryption key, mirroring fix/credentials.go's CredentialStore.
type credentialCodec struct {
	key []byte
}

func newCredentialCodec(masterKey string) (*credentialCodec, error) {
	if masterKey == "" {
		return nil, errors.New("master encryption key must not be empty")
	}
	key := pbkdf2.Key([]byte(masterKey), []byte(credentialKeySalt), credentialKeyIterations, 32, sha256.New)
	return &credentialCodec{key: key}, nil
}

func (c *credentialCodec) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (c *credentialCodec) decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, body := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
