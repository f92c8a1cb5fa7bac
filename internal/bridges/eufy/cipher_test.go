package eufy

import (
	"bytes"
	"errors"
	"testing"
)

func TestAESCipherRoundTrip(t *testing.T) {
	c := NewDefaultCipher()

	tests := []struct {
		name    string
		plain   []byte
		wantLen int
	}{
		{name: "empty", plain: nil, wantLen: 16},
		{name: "short", plain: []byte{0x05, 0x00, 1, 2, 3, 4, 5}, wantLen: 16},
		{name: "aligned gets a padding block", plain: bytes.Repeat([]byte{0xAB}, 16), wantLen: 32},
		{name: "multi block", plain: bytes.Repeat([]byte{0x01}, 40), wantLen: 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := c.Encrypt(tt.plain)
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			if len(enc) != tt.wantLen {
				t.Errorf("len(Encrypt()) = %d, want %d", len(enc), tt.wantLen)
			}

			dec, err := c.Decrypt(enc)
			if err != nil {
				t.Fatalf("Decrypt() error: %v", err)
			}
			if !bytes.Equal(dec[:len(tt.plain)], tt.plain) {
				t.Errorf("Decrypt() prefix = %x, want %x", dec[:len(tt.plain)], tt.plain)
			}
			for i, b := range dec[len(tt.plain):] {
				if b != 0 {
					t.Fatalf("padding byte %d = %#x, want 0", i, b)
				}
			}
		})
	}
}

func TestAESCipherDecryptRejectsPartialBlocks(t *testing.T) {
	c := NewDefaultCipher()
	for _, n := range []int{0, 1, 15, 17} {
		if _, err := c.Decrypt(make([]byte, n)); !errors.Is(err, ErrCipher) {
			t.Errorf("Decrypt(%d bytes) error = %v, want ErrCipher", n, err)
		}
	}
}

func TestNewAESCipherFromHex(t *testing.T) {
	custom, err := NewAESCipherFromHex("244e6d8a56ac879124432d8b6cbca2c4", "772456f2a7664cf3392c3597e93e5747")
	if err != nil {
		t.Fatalf("NewAESCipherFromHex() error: %v", err)
	}

	plain := []byte("hello")
	a, _ := custom.Encrypt(plain)
	b, _ := NewDefaultCipher().Encrypt(plain)
	if !bytes.Equal(a, b) {
		t.Error("hex key matching the built-in key produced different ciphertext")
	}

	if _, err := NewAESCipherFromHex("zz", ""); !errors.Is(err, ErrCipher) {
		t.Errorf("invalid hex error = %v, want ErrCipher", err)
	}
	if _, err := NewAESCipherFromHex("", "0011"); !errors.Is(err, ErrCipher) {
		t.Errorf("short iv error = %v, want ErrCipher", err)
	}
}
