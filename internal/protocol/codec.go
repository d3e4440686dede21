package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/riftlink/relay/internal/crypto"
)

// Encode serializes a packet into the wire envelope. For encrypted packet
// types sess must be non-nil; the body is sealed under the session key with
// a fresh nonce and emitted as nonce || sealed bytes.
func Encode(p Packet, sess *crypto.Session) ([]byte, error) {
	out := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(out[0:2], p.PacketID())

	var body Writer
	p.EncodeBody(&body)

	if !p.Encrypted() {
		out[2] = 0
		return append(out, body.Bytes()...), nil
	}

	if sess == nil {
		return nil, fmt.Errorf("%w: cannot encode %s", ErrNoSession, PacketName(p.PacketID()))
	}

	out[2] = 1
	sealed, err := sess.Seal(body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", PacketName(p.PacketID()), err)
	}
	return append(out, sealed...), nil
}

// Decode parses a wire envelope into a typed packet. sess may be nil until a
// crypto session is established; encrypted packets then fail with
// ErrNoSession. Authentication failures on the sealed body surface as
// crypto.ErrDecryptionFailed, never as a panic.
func Decode(data []byte, sess *crypto.Session) (Packet, error) {
	if len(data) < HeaderSize {
		return nil, ErrShortHeader
	}

	id := binary.BigEndian.Uint16(data[0:2])
	encrypted := data[2] != 0

	packet := NewPacketByID(id)
	if packet == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacketID, id)
	}

	if packet.Encrypted() && !encrypted {
		return nil, fmt.Errorf("%w: %s", ErrCleartextViolation, PacketName(id))
	}

	body := data[HeaderSize:]
	if encrypted {
		if sess == nil {
			return nil, fmt.Errorf("%w: cannot decode %s", ErrNoSession, PacketName(id))
		}
		opened, err := sess.Open(body)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", PacketName(id), err)
		}
		body = opened
	}

	if err := packet.DecodeBody(NewReader(body)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBody, PacketName(id), err)
	}

	return packet, nil
}
