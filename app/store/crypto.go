package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-pkgz/lcw/v2"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	// argon2id parameters
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4

	derivedKeysCacheSize = 1000
)

// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
var ErrDecryptionFailed = errors.New("decryption failed")

// Crypto handles encryption and decryption of cookie values using NaCl secretbox with Argon2id key derivation.
// Derived keys are kept in an LRU cache by salt. Every stored value carries its own salt, so a value read
// on each request costs one derivation, not one per read.
type Crypto struct {
	masterKey []byte
	keys      lcw.LoadingCache[[]byte]
	kdf       func(password, salt []byte) []byte
}

// NewCrypto creates a new Crypto instance with the given master key.
// Key must be at least 16 bytes.
func NewCrypto(masterKey []byte) (*Crypto, error) {
	if len(masterKey) < 16 {
		return nil, errors.New("master key must be at least 16 bytes")
	}
	o := lcw.NewOpts[[]byte]()
	keys, err := lcw.NewLruCache(o.MaxKeys(derivedKeysCacheSize))
	if err != nil {
		return nil, fmt.Errorf("failed to make derived keys cache: %w", err)
	}
	return &Crypto{masterKey: masterKey, keys: keys, kdf: argon2idKey}, nil
}

// Encrypt encrypts the value using NaCl secretbox with Argon2id key derivation.
// Format: base64(salt || nonce || ciphertext)
func (c *Crypto) Encrypt(value []byte) ([]byte, error) {
	// generate random salt
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	// derive key using argon2id
	derivedKey, err := c.deriveKey(salt)
	if err != nil {
		return nil, err
	}

	// generate random nonce
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	var key [keySize]byte
	copy(key[:], derivedKey)
	ciphertext := secretbox.Seal(nil, value, &nonce, &key)

	// combine: salt || nonce || ciphertext
	result := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce[:]...)
	result = append(result, ciphertext...)

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(result)))
	base64.StdEncoding.Encode(encoded, result)
	return encoded, nil
}

// Decrypt decrypts the value that was encrypted with Encrypt.
func (c *Crypto) Decrypt(encrypted []byte) ([]byte, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(encrypted)))
	n, err := base64.StdEncoding.Decode(decoded, encrypted)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	decoded = decoded[:n]

	// minimum size: salt + nonce + secretbox overhead (16 bytes for poly1305)
	if len(decoded) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrDecryptionFailed
	}

	// extract salt, nonce, ciphertext
	salt := decoded[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], decoded[saltSize:saltSize+nonceSize])
	ciphertext := decoded[saltSize+nonceSize:]

	derivedKey, err := c.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], derivedKey)

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &key)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	// empty cookie string decrypts to nil
	if plaintext == nil {
		return []byte{}, nil
	}
	return plaintext, nil
}

// Close drops derived keys.
func (c *Crypto) Close() error {
	return c.keys.Close()
}

// deriveKey returns the 32-byte key for the salt, deriving it with Argon2id on cache miss.
func (c *Crypto) deriveKey(salt []byte) ([]byte, error) {
	key, err := c.keys.Get(string(salt), func() ([]byte, error) {
		return c.kdf(c.masterKey, salt), nil
	})
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func argon2idKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keySize)
}

// Encrypted keeps cookie strings encrypted at rest in the wrapped backend.
// Keys are stored as is, only values are encrypted.
type Encrypted struct {
	backend Backend
	crypto  *Crypto
}

// NewEncrypted wraps the backend with value encryption using the given master key.
func NewEncrypted(backend Backend, masterKey []byte) (*Encrypted, error) {
	c, err := NewCrypto(masterKey)
	if err != nil {
		return nil, err
	}
	return &Encrypted{backend: backend, crypto: c}, nil
}

// Get returns the decrypted cookie string for the key.
func (e *Encrypted) Get(ctx context.Context, key string) (string, error) {
	value, err := e.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := e.crypto.Decrypt([]byte(value))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %q: %w", key, err)
	}
	return string(plain), nil
}

// Put encrypts and stores the cookie string.
func (e *Encrypted) Put(ctx context.Context, key, value string) error {
	encrypted, err := e.crypto.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt %q: %w", key, err)
	}
	return e.backend.Put(ctx, key, string(encrypted))
}

// List returns decrypted entries if the wrapped backend supports listing.
// Entries failing decryption are skipped.
func (e *Encrypted) List(ctx context.Context) ([]Entry, error) {
	l, ok := e.backend.(Lister)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	entries, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		plain, err := e.crypto.Decrypt([]byte(entry.Value))
		if err != nil {
			continue
		}
		entry.Value = string(plain)
		res = append(res, entry)
	}
	return res, nil
}

// Delete removes the key if the wrapped backend supports it.
func (e *Encrypted) Delete(ctx context.Context, key string) error {
	l, ok := e.backend.(Lister)
	if !ok {
		return errors.ErrUnsupported
	}
	return l.Delete(ctx, key)
}

// Close drops derived keys and closes the wrapped backend.
func (e *Encrypted) Close() error {
	return errors.Join(e.crypto.Close(), e.backend.Close())
}
