package eufy

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// Protocol key material shared by every device on the local network.
var (
	defaultKey = []byte{
		0x24, 0x4E, 0x6D, 0x8A, 0x56, 0xAC, 0x87, 0x91,
		0x24, 0x43, 0x2D, 0x8B, 0x6C, 0xBC, 0xA2, 0xC4,
	}
	defaultIV = []byte{
		0x77, 0x24, 0x56, 0xF2, 0xA7, 0x66, 0x4C, 0xF3,
		0x39, 0x2C, 0x35, 0x97, 0xE9, 0x3E, 0x57, 0x47,
	}
)

// Cipher transforms payloads on their way to and from the device.
// Implementations must be deterministic and hold no per-call state.
type Cipher interface {
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(envelope []byte) ([]byte, error)
}

// Ensure AESCipher implements Cipher.
var _ Cipher = (*AESCipher)(nil)

// AESCipher is AES-128-CBC with a fixed IV and zero padding.
type AESCipher struct {
	block cipher.Block
	iv    []byte
}

// NewAESCipher creates a cipher from a 16-byte key and IV.
func NewAESCipher(key, iv []byte) (*AESCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCipher, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrCipher, aes.BlockSize, len(iv))
	}
	return &AESCipher{block: block, iv: append([]byte(nil), iv...)}, nil
}

// NewDefaultCipher returns the cipher using the protocol's built-in key.
func NewDefaultCipher() *AESCipher {
	c, err := NewAESCipher(defaultKey, defaultIV)
	if err != nil {
		panic(err) // constant key material is always valid
	}
	return c
}

// NewAESCipherFromHex builds a cipher from hex-encoded key and IV.
// Empty strings select the built-in values.
func NewAESCipherFromHex(keyHex, ivHex string) (*AESCipher, error) {
	key, iv := defaultKey, defaultIV
	if keyHex != "" {
		b, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("%w: key: %w", ErrCipher, err)
		}
		key = b
	}
	if ivHex != "" {
		b, err := hex.DecodeString(ivHex)
		if err != nil {
			return nil, fmt.Errorf("%w: iv: %w", ErrCipher, err)
		}
		iv = b
	}
	return NewAESCipher(key, iv)
}

// Encrypt zero-pads plain to the next block boundary and encrypts it.
// A payload that is already aligned gains one full block of padding.
func (c *AESCipher) Encrypt(plain []byte) ([]byte, error) {
	padded := make([]byte, len(plain)+aes.BlockSize-len(plain)%aes.BlockSize)
	copy(padded, plain)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt decrypts a whole number of blocks. Padding is left in place;
// the length prefix inside the plaintext delimits the payload.
func (c *AESCipher) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 || len(envelope)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d",
			ErrCipher, len(envelope), aes.BlockSize)
	}

	out := make([]byte, len(envelope))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, envelope)
	return out, nil
}
