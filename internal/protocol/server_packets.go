package protocol

import "github.com/riftlink/relay/internal/crypto"

// PingResponsePacket echoes the ping id alongside the current player count.
type PingResponsePacket struct {
	ID          uint32
	PlayerCount uint32
}

func (*PingResponsePacket) PacketID() uint16 { return IDPingResponse }
func (*PingResponsePacket) Encrypted() bool  { return false }

func (p *PingResponsePacket) EncodeBody(w *Writer) {
	w.WriteUint32(p.ID)
	w.WriteUint32(p.PlayerCount)
}

func (p *PingResponsePacket) DecodeBody(r *Reader) error {
	var err error
	if p.ID, err = r.ReadUint32(); err != nil {
		return err
	}
	p.PlayerCount, err = r.ReadUint32()
	return err
}

// CryptoHandshakeResponsePacket returns the server's static public key.
type CryptoHandshakeResponsePacket struct {
	PublicKey [crypto.KeySize]byte
}

func (*CryptoHandshakeResponsePacket) PacketID() uint16 { return IDCryptoHandshakeResponse }
func (*CryptoHandshakeResponsePacket) Encrypted() bool  { return false }

func (p *CryptoHandshakeResponsePacket) EncodeBody(w *Writer) {
	w.WriteRaw(p.PublicKey[:])
}

func (p *CryptoHandshakeResponsePacket) DecodeBody(r *Reader) error {
	key, err := r.ReadRaw(crypto.KeySize)
	if err != nil {
		return err
	}
	copy(p.PublicKey[:], key)
	return nil
}

// KeepaliveResponsePacket confirms liveness with the current player count.
type KeepaliveResponsePacket struct {
	PlayerCount uint32
}

func (*KeepaliveResponsePacket) PacketID() uint16 { return IDKeepaliveResponse }
func (*KeepaliveResponsePacket) Encrypted() bool  { return false }

func (p *KeepaliveResponsePacket) EncodeBody(w *Writer) {
	w.WriteUint32(p.PlayerCount)
}

func (p *KeepaliveResponsePacket) DecodeBody(r *Reader) error {
	var err error
	p.PlayerCount, err = r.ReadUint32()
	return err
}

// ServerDisconnectPacket tells the peer why the server is done with it.
type ServerDisconnectPacket struct {
	Message string
}

func (*ServerDisconnectPacket) PacketID() uint16 { return IDServerDisconnect }
func (*ServerDisconnectPacket) Encrypted() bool  { return false }

func (p *ServerDisconnectPacket) EncodeBody(w *Writer) {
	w.WriteString(p.Message)
}

func (p *ServerDisconnectPacket) DecodeBody(r *Reader) error {
	var err error
	p.Message, err = r.ReadString()
	return err
}

// LoggedInPacket confirms a successful login.
type LoggedInPacket struct{}

func (*LoggedInPacket) PacketID() uint16      { return IDLoggedIn }
func (*LoggedInPacket) Encrypted() bool       { return false }
func (*LoggedInPacket) EncodeBody(*Writer)    {}
func (*LoggedInPacket) DecodeBody(*Reader) error { return nil }

// LoginFailedPacket carries the central server's rejection message.
type LoginFailedPacket struct {
	Message string
}

func (*LoginFailedPacket) PacketID() uint16 { return IDLoginFailed }
func (*LoginFailedPacket) Encrypted() bool  { return false }

func (p *LoginFailedPacket) EncodeBody(w *Writer) {
	w.WriteString(p.Message)
}

func (p *LoginFailedPacket) DecodeBody(r *Reader) error {
	var err error
	p.Message, err = r.ReadString()
	return err
}

// ServerNoticePacket is a free-form operator message shown to the player.
type ServerNoticePacket struct {
	Message string
}

func (*ServerNoticePacket) PacketID() uint16 { return IDServerNotice }
func (*ServerNoticePacket) Encrypted() bool  { return false }

func (p *ServerNoticePacket) EncodeBody(w *Writer) {
	w.WriteString(p.Message)
}

func (p *ServerNoticePacket) DecodeBody(r *Reader) error {
	var err error
	p.Message, err = r.ReadString()
	return err
}

// PlayerProfilesPacket answers a RequestProfilesPacket.
type PlayerProfilesPacket struct {
	Profiles []PlayerAccountData
}

func (*PlayerProfilesPacket) PacketID() uint16 { return IDPlayerProfiles }
func (*PlayerProfilesPacket) Encrypted() bool  { return false }

func (p *PlayerProfilesPacket) EncodeBody(w *Writer) {
	w.WriteUint32(uint32(len(p.Profiles)))
	for i := range p.Profiles {
		p.Profiles[i].encode(w)
	}
}

func (p *PlayerProfilesPacket) DecodeBody(r *Reader) error {
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if count > MaxProfileRequestIDs {
		return ErrMalformedBody
	}
	p.Profiles = make([]PlayerAccountData, count)
	for i := range p.Profiles {
		if err := p.Profiles[i].decode(r); err != nil {
			return err
		}
	}
	return nil
}

// VoiceBroadcastPacket fans a voice payload out to other players, tagged
// with the sender's account id. Always encrypted.
type VoiceBroadcastPacket struct {
	PlayerID int32
	Data     VoiceData
}

func (*VoiceBroadcastPacket) PacketID() uint16 { return IDVoiceBroadcast }
func (*VoiceBroadcastPacket) Encrypted() bool  { return true }

func (p *VoiceBroadcastPacket) EncodeBody(w *Writer) {
	w.WriteInt32(p.PlayerID)
	p.Data.encode(w)
}

func (p *VoiceBroadcastPacket) DecodeBody(r *Reader) error {
	var err error
	if p.PlayerID, err = r.ReadInt32(); err != nil {
		return err
	}
	return p.Data.decode(r)
}
