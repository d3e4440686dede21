// Package protocol implements the relay wire protocol: the packet envelope,
// the typed packet set, and body serialization.
//
// Envelope format:
//
//	PacketID  [2 bytes] - big-endian packet id
//	Encrypted [1 byte]  - 0 for cleartext, 1 for encrypted
//	Body      [...]     - body, or 24-byte nonce followed by the sealed body
package protocol

import "errors"

// Version is the protocol version. The handshake requires exact equality
// between client and server, and the central server's boot data must agree.
const Version uint16 = 1

// HeaderSize is the size of the packet envelope header in bytes.
const HeaderSize = 3

var (
	// ErrShortHeader is returned when a datagram cannot hold the envelope
	// header.
	ErrShortHeader = errors.New("packet is missing a header")

	// ErrUnknownPacketID is returned for packet ids with no registered type.
	ErrUnknownPacketID = errors.New("unknown packet id")

	// ErrCleartextViolation is returned when a packet that must be encrypted
	// arrives with the cleartext flag.
	ErrCleartextViolation = errors.New("cleartext packet where encrypted was expected")

	// ErrNoSession is returned when an encrypted packet is processed before
	// a crypto session was established.
	ErrNoSession = errors.New("no crypto session established")

	// ErrMalformedBody is returned when a packet body fails to decode.
	ErrMalformedBody = errors.New("malformed packet body")

	// ErrTooManyVoiceFrames is returned when a voice packet exceeds
	// MaxVoiceFrames.
	ErrTooManyVoiceFrames = errors.New("too many voice frames")
)

// Client packet ids.
const (
	IDPing                 uint16 = 10000
	IDCryptoHandshakeStart uint16 = 10001
	IDKeepalive            uint16 = 10002
	IDLogin                uint16 = 10003
	IDDisconnect           uint16 = 10004
	IDSyncIcons            uint16 = 11000
	IDRequestProfiles      uint16 = 11001
	IDVoice                uint16 = 11010
)

// Server packet ids.
const (
	IDPingResponse            uint16 = 20000
	IDCryptoHandshakeResponse uint16 = 20001
	IDKeepaliveResponse       uint16 = 20002
	IDServerDisconnect        uint16 = 20003
	IDLoggedIn                uint16 = 20004
	IDLoginFailed             uint16 = 20005
	IDServerNotice            uint16 = 20006
	IDPlayerProfiles          uint16 = 21000
	IDVoiceBroadcast          uint16 = 21010
)

// Packet is one protocol message. The id and the encryption requirement are
// fixed per concrete type, never per instance. Decoded packets are not
// modified after DecodeBody returns; outbound packets are constructed fresh.
type Packet interface {
	// PacketID returns the wire id of this packet type.
	PacketID() uint16

	// Encrypted reports whether this packet type travels inside the
	// encrypted envelope.
	Encrypted() bool

	// EncodeBody serializes the body into w.
	EncodeBody(w *Writer)

	// DecodeBody deserializes the body from r.
	DecodeBody(r *Reader) error
}

// NewPacketByID returns a fresh zero packet for a known id, or nil if the id
// is unknown. Both directions are covered so that client tooling and tests
// can decode server packets with the same codec.
func NewPacketByID(id uint16) Packet {
	switch id {
	case IDPing:
		return &PingPacket{}
	case IDCryptoHandshakeStart:
		return &CryptoHandshakeStartPacket{}
	case IDKeepalive:
		return &KeepalivePacket{}
	case IDLogin:
		return &LoginPacket{}
	case IDDisconnect:
		return &DisconnectPacket{}
	case IDSyncIcons:
		return &SyncIconsPacket{}
	case IDRequestProfiles:
		return &RequestProfilesPacket{}
	case IDVoice:
		return &VoicePacket{}
	case IDPingResponse:
		return &PingResponsePacket{}
	case IDCryptoHandshakeResponse:
		return &CryptoHandshakeResponsePacket{}
	case IDKeepaliveResponse:
		return &KeepaliveResponsePacket{}
	case IDServerDisconnect:
		return &ServerDisconnectPacket{}
	case IDLoggedIn:
		return &LoggedInPacket{}
	case IDLoginFailed:
		return &LoginFailedPacket{}
	case IDServerNotice:
		return &ServerNoticePacket{}
	case IDPlayerProfiles:
		return &PlayerProfilesPacket{}
	case IDVoiceBroadcast:
		return &VoiceBroadcastPacket{}
	default:
		return nil
	}
}

// PacketName returns a human-readable name for a packet id, for logging.
func PacketName(id uint16) string {
	switch id {
	case IDPing:
		return "Ping"
	case IDCryptoHandshakeStart:
		return "CryptoHandshakeStart"
	case IDKeepalive:
		return "Keepalive"
	case IDLogin:
		return "Login"
	case IDDisconnect:
		return "Disconnect"
	case IDSyncIcons:
		return "SyncIcons"
	case IDRequestProfiles:
		return "RequestProfiles"
	case IDVoice:
		return "Voice"
	case IDPingResponse:
		return "PingResponse"
	case IDCryptoHandshakeResponse:
		return "CryptoHandshakeResponse"
	case IDKeepaliveResponse:
		return "KeepaliveResponse"
	case IDServerDisconnect:
		return "ServerDisconnect"
	case IDLoggedIn:
		return "LoggedIn"
	case IDLoginFailed:
		return "LoginFailed"
	case IDServerNotice:
		return "ServerNotice"
	case IDPlayerProfiles:
		return "PlayerProfiles"
	case IDVoiceBroadcast:
		return "VoiceBroadcast"
	default:
		return "Unknown"
	}
}
