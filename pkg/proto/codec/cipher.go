package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	cfb8 "github.com/Tnze/go-mc/net/CFB8"
)

// The login's shared secret is the AES key and the CFB8 IV at once.

// NewDecryptReader deciphers r with the shared secret.
func NewDecryptReader(r io.Reader, secret []byte) (io.Reader, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return cipher.StreamReader{S: cfb8.NewCFB8Decrypt(block, secret), R: r}, nil
}

// NewEncryptWriter enciphers everything written to w with the shared secret.
func NewEncryptWriter(w io.Writer, secret []byte) (io.Writer, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return cipher.StreamWriter{S: cfb8.NewCFB8Encrypt(block, secret), W: w}, nil
}
