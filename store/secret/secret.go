// Package secret 账户密钥落库加密：nacl secretbox，随机 nonce 前置，整体 base64。
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyLen    = 32
	nonceSize = 24
)

var (
	ErrKeyLength = errors.New("encryption key must be 32 bytes")
	ErrDecrypt   = errors.New("decryption failed")
)

type Box struct {
	key [keyLen]byte
}

func NewBox(key string) (*Box, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("%w, got %d", ErrKeyLength, len(key))
	}
	b := &Box{}
	copy(b.key[:], key)
	return b, nil
}

func (b *Box) Encrypt(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: short ciphertext", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
