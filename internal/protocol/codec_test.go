package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/riftlink/relay/internal/crypto"
)

func newTestSessions(t *testing.T) (server, client *crypto.Session) {
	t.Helper()

	serverKP, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}
	clientKP, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}

	server, err = crypto.NewSession(serverKP, clientKP.Public)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	client, err = crypto.ClientSession(clientKP, serverKP.Public)
	if err != nil {
		t.Fatalf("ClientSession failed: %v", err)
	}
	return server, client
}

func TestEncodeDecode_CleartextRoundTrip(t *testing.T) {
	packets := []Packet{
		&PingPacket{ID: 777},
		&KeepalivePacket{},
		&DisconnectPacket{},
		&SyncIconsPacket{Icons: IconSet{Cube: 13, Ship: 4, Wave: 22, Color1: 9, Color2: 3}},
		&RequestProfilesPacket{IDs: []int32{1, 5, 91235}},
		&ServerDisconnectPacket{Message: "outdated client"},
		&PlayerProfilesPacket{Profiles: []PlayerAccountData{
			{AccountID: 5, Name: "Alice", Icons: IconSet{Cube: 1}},
			{AccountID: 9, Name: "Bob"},
		}},
	}

	for _, p := range packets {
		data, err := Encode(p, nil)
		if err != nil {
			t.Fatalf("Encode(%s) failed: %v", PacketName(p.PacketID()), err)
		}

		decoded, err := Decode(data, nil)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", PacketName(p.PacketID()), err)
		}

		if !reflect.DeepEqual(p, decoded) {
			t.Errorf("%s round trip mismatch:\n got %#v\nwant %#v",
				PacketName(p.PacketID()), decoded, p)
		}
	}
}

func TestEncodeDecode_EncryptedRoundTrip(t *testing.T) {
	serverSess, clientSess := newTestSessions(t)

	p := &VoiceBroadcastPacket{
		PlayerID: 42,
		Data:     VoiceData{Frames: [][]byte{{1, 2, 3}, {4, 5}}},
	}

	data, err := Encode(p, serverSess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Encrypted flag must be set and the body must not contain the plaintext.
	if data[2] != 1 {
		t.Error("encrypted flag not set")
	}
	if bytes.Contains(data, []byte{1, 2, 3, 4, 5}) {
		t.Error("sealed envelope leaks plaintext")
	}

	decoded, err := Decode(data, clientSess)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, p)
	}
}

func TestDecode_WrongSessionFails(t *testing.T) {
	serverSess, _ := newTestSessions(t)
	otherSess, _ := newTestSessions(t)

	data, err := Encode(&VoicePacket{Data: VoiceData{Frames: [][]byte{{9}}}}, serverSess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, err = Decode(data, otherSess)
	if !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecode_ShortHeader(t *testing.T) {
	for _, data := range [][]byte{nil, {0x27}, {0x27, 0x10}} {
		if _, err := Decode(data, nil); !errors.Is(err, ErrShortHeader) {
			t.Errorf("Decode(%v): expected ErrShortHeader, got %v", data, err)
		}
	}
}

func TestDecode_UnknownPacketID(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0x00}, nil)
	if !errors.Is(err, ErrUnknownPacketID) {
		t.Fatalf("expected ErrUnknownPacketID, got %v", err)
	}
}

func TestDecode_CleartextViolation(t *testing.T) {
	// A login packet with the encrypted flag cleared must be rejected before
	// any body parsing happens.
	var body Writer
	(&LoginPacket{AccountID: 5, Token: "abc"}).EncodeBody(&body)

	data := append([]byte{0x27, 0x13, 0x00}, body.Bytes()...) // 10003, cleartext
	if _, err := Decode(data, nil); !errors.Is(err, ErrCleartextViolation) {
		t.Fatalf("expected ErrCleartextViolation, got %v", err)
	}
}

func TestDecode_EncryptedWithoutSession(t *testing.T) {
	serverSess, _ := newTestSessions(t)

	data, err := Encode(&VoicePacket{}, serverSess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := Decode(data, nil); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestEncode_EncryptedWithoutSession(t *testing.T) {
	_, err := Encode(&LoginPacket{AccountID: 1, Token: "t"}, nil)
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestDecode_MalformedBody(t *testing.T) {
	// Ping body is 4 bytes; send only 2.
	data := []byte{0x27, 0x10, 0x00, 0x00, 0x01}
	if _, err := Decode(data, nil); !errors.Is(err, ErrMalformedBody) {
		t.Fatalf("expected ErrMalformedBody, got %v", err)
	}
}

func TestDecode_TamperedCiphertext(t *testing.T) {
	serverSess, clientSess := newTestSessions(t)

	data, err := Encode(&VoicePacket{Data: VoiceData{Frames: [][]byte{{1}}}}, serverSess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	data[len(data)-1] ^= 0x01
	if _, err := Decode(data, clientSess); err == nil {
		t.Fatal("expected tampered packet to fail decode")
	}
}

func TestVoiceData_TotalSize(t *testing.T) {
	v := VoiceData{Frames: [][]byte{make([]byte, 1000), make([]byte, 1000)}}
	if got := v.TotalSize(); got != 2000 {
		t.Errorf("TotalSize() = %d, want 2000", got)
	}
}

func TestReader_BlobTooLarge(t *testing.T) {
	var w Writer
	w.WriteUint32(MaxBlobSize + 1)

	if _, err := NewReader(w.Bytes()).ReadBytes(); err == nil {
		t.Fatal("expected oversized blob length to be rejected")
	}
}
