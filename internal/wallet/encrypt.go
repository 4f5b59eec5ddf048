package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize     = 32
	pbkdf2Rounds = 4096
	aesKeyLength = 32
)

func generateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Rounds, aesKeyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encrypt returns salt, nonce and ciphertext concatenated
func encrypt(plaintext []byte, password string) ([]byte, error) {
	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	aesGCM, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	result := append(salt, nonce...)
	return aesGCM.Seal(result, nonce, plaintext, nil), nil
}

func decrypt(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < saltSize {
		return nil, errors.New("ciphertext too short")
	}
	salt, rest := encrypted[:saltSize], encrypted[saltSize:]

	aesGCM, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	nonceSize := aesGCM.NonceSize()
	if len(rest) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	return aesGCM.Open(nil, nonce, ciphertext, nil)
}
