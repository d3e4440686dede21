// Package crypto implements the per-connection encryption session for the
// relay protocol. It uses X25519 for the key exchange and XChaCha20-Poly1305
// for the packet envelope, with a fresh random 24-byte nonce per message.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of X25519 and XChaCha20-Poly1305 keys in bytes.
	KeySize = 32

	// NonceSize is the size of XChaCha20-Poly1305 nonces in bytes.
	// The wire contract prepends this nonce to every sealed body.
	NonceSize = chacha20poly1305.NonceSizeX

	// TagSize is the size of Poly1305 authentication tags in bytes.
	TagSize = 16

	// SealOverhead is the total overhead added to each sealed message:
	// the prepended nonce plus the appended authentication tag.
	SealOverhead = NonceSize + TagSize

	// hkdfInfo is the context string for HKDF key derivation.
	hkdfInfo = "riftlink-relay-session-v1"
)

var (
	// ErrInvalidPublicKey is returned for low-order or all-zero peer keys.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrCiphertextTooShort is returned when a sealed message cannot even
	// hold a nonce and a tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when authentication of a sealed
	// message fails.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Keypair is a static or ephemeral X25519 keypair.
type Keypair struct {
	Private [KeySize]byte
	Public  [KeySize]byte
}

// GenerateKeypair generates a new X25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	kp := &Keypair{}
	if _, err := io.ReadFull(rand.Reader, kp.Private[:]); err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	// Clamp the private key per X25519 spec
	kp.Private[0] &= 248
	kp.Private[31] &= 127
	kp.Private[31] |= 64

	curve25519.ScalarBaseMult(&kp.Public, &kp.Private)

	return kp, nil
}

// Session holds the derived symmetric key for one connection. It is created
// exactly once per connection during the handshake and used to seal and open
// every encrypted packet for the rest of the connection's life.
type Session struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewSession derives a session from the server's static private key and the
// peer's ephemeral public key. Both sides arrive at the same key: the salt is
// serverPublic || peerPublic, which the client knows after receiving the
// handshake response.
func NewSession(server *Keypair, peerPublic [KeySize]byte) (*Session, error) {
	var zero [KeySize]byte
	if peerPublic == zero {
		return nil, fmt.Errorf("%w: zero key", ErrInvalidPublicKey)
	}

	shared, err := curve25519.X25519(server.Private[:], peerPublic[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	salt := make([]byte, KeySize*2)
	copy(salt[:KeySize], server.Public[:])
	copy(salt[KeySize:], peerPublic[:])

	key := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, shared, salt, []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer ZeroBytes(key)
	defer ZeroBytes(shared)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	return &Session{aead: aead}, nil
}

// ClientSession derives the same session from the client side, pairing the
// client's ephemeral private key with the server's static public key. Used by
// tests and by client tooling.
func ClientSession(client *Keypair, serverPublic [KeySize]byte) (*Session, error) {
	var zero [KeySize]byte
	if serverPublic == zero {
		return nil, fmt.Errorf("%w: zero key", ErrInvalidPublicKey)
	}

	shared, err := curve25519.X25519(client.Private[:], serverPublic[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	salt := make([]byte, KeySize*2)
	copy(salt[:KeySize], serverPublic[:])
	copy(salt[KeySize:], client.Public[:])

	key := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, shared, salt, []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer ZeroBytes(key)
	defer ZeroBytes(shared)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	return &Session{aead: aead}, nil
}

// Seal encrypts plaintext. The output is nonce || ciphertext || tag, with a
// fresh random nonce generated for every call. Nonce reuse under the same key
// would break the AEAD guarantees, so the nonce is never derived from state.
func (s *Session) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(rand.Reader, out[:NonceSize]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return s.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Open decrypts a message produced by Seal. It returns ErrCiphertextTooShort
// for undersized input and ErrDecryptionFailed when the authentication tag
// does not verify against this session's key.
func (s *Session) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < SealOverhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(sealed))
	}

	plaintext, err := s.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// ZeroBytes overwrites a byte slice with zeros.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
