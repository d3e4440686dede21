package crypto

import (
	"bytes"
	"testing"
)

func TestGenerateKeypair(t *testing.T) {
	kp1, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}
	kp2, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	if kp1.Private == kp2.Private {
		t.Error("two keypairs share a private key")
	}
	if kp1.Public == kp2.Public {
		t.Error("two keypairs share a public key")
	}

	// Clamping per X25519 spec
	if kp1.Private[0]&7 != 0 {
		t.Error("private key low bits not cleared")
	}
	if kp1.Private[31]&128 != 0 || kp1.Private[31]&64 == 0 {
		t.Error("private key high bits not clamped")
	}
}

func TestSession_BothSidesAgree(t *testing.T) {
	server, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}
	client, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	serverSess, err := NewSession(server, client.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	clientSess, err := ClientSession(client, server.Public)
	if err != nil {
		t.Fatalf("ClientSession failed: %v", err)
	}

	plaintext := []byte("voice frame payload")

	sealed, err := serverSess.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	opened, err := clientSess.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestSession_SealUsesFreshNonce(t *testing.T) {
	server, _ := GenerateKeypair()
	client, _ := GenerateKeypair()

	sess, err := NewSession(server, client.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	plaintext := []byte("same message")
	a, err := sess.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	b, err := sess.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if bytes.Equal(a[:NonceSize], b[:NonceSize]) {
		t.Error("two seals produced the same nonce")
	}
	if bytes.Equal(a, b) {
		t.Error("two seals produced identical output")
	}
}

func TestSession_OpenWrongSession(t *testing.T) {
	server, _ := GenerateKeypair()
	clientA, _ := GenerateKeypair()
	clientB, _ := GenerateKeypair()

	sessA, err := NewSession(server, clientA.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	sessB, err := NewSession(server, clientB.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	sealed, err := sessA.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := sessB.Open(sealed); err == nil {
		t.Fatal("expected decryption under the wrong session to fail")
	}
}

func TestSession_OpenTampered(t *testing.T) {
	server, _ := GenerateKeypair()
	client, _ := GenerateKeypair()

	sess, err := NewSession(server, client.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	sealed, err := sess.Seal([]byte("integrity protected"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := sess.Open(sealed); err == nil {
		t.Fatal("expected tampered ciphertext to fail authentication")
	}
}

func TestSession_OpenTooShort(t *testing.T) {
	server, _ := GenerateKeypair()
	client, _ := GenerateKeypair()

	sess, err := NewSession(server, client.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if _, err := sess.Open(make([]byte, SealOverhead-1)); err == nil {
		t.Fatal("expected undersized ciphertext to be rejected")
	}
}

func TestNewSession_ZeroKey(t *testing.T) {
	server, _ := GenerateKeypair()

	var zero [KeySize]byte
	if _, err := NewSession(server, zero); err == nil {
		t.Fatal("expected zero public key to be rejected")
	}
}
