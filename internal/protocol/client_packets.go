package protocol

import "github.com/riftlink/relay/internal/crypto"

// PingPacket is a connectivity probe. The echo id is returned verbatim in
// the response.
type PingPacket struct {
	ID uint32
}

func (*PingPacket) PacketID() uint16 { return IDPing }
func (*PingPacket) Encrypted() bool  { return false }

func (p *PingPacket) EncodeBody(w *Writer) {
	w.WriteUint32(p.ID)
}

func (p *PingPacket) DecodeBody(r *Reader) error {
	var err error
	p.ID, err = r.ReadUint32()
	return err
}

// CryptoHandshakeStartPacket carries the peer's claimed protocol version and
// its ephemeral public key.
type CryptoHandshakeStartPacket struct {
	Protocol  uint16
	PublicKey [crypto.KeySize]byte
}

func (*CryptoHandshakeStartPacket) PacketID() uint16 { return IDCryptoHandshakeStart }
func (*CryptoHandshakeStartPacket) Encrypted() bool  { return false }

func (p *CryptoHandshakeStartPacket) EncodeBody(w *Writer) {
	w.WriteUint16(p.Protocol)
	w.WriteRaw(p.PublicKey[:])
}

func (p *CryptoHandshakeStartPacket) DecodeBody(r *Reader) error {
	var err error
	if p.Protocol, err = r.ReadUint16(); err != nil {
		return err
	}
	key, err := r.ReadRaw(crypto.KeySize)
	if err != nil {
		return err
	}
	copy(p.PublicKey[:], key)
	return nil
}

// KeepalivePacket keeps an authenticated connection alive.
type KeepalivePacket struct{}

func (*KeepalivePacket) PacketID() uint16      { return IDKeepalive }
func (*KeepalivePacket) Encrypted() bool       { return false }
func (*KeepalivePacket) EncodeBody(*Writer)    {}
func (*KeepalivePacket) DecodeBody(*Reader) error { return nil }

// LoginPacket carries the account id and the session token to verify with
// the central server. Always encrypted.
type LoginPacket struct {
	AccountID int32
	Token     string
}

func (*LoginPacket) PacketID() uint16 { return IDLogin }
func (*LoginPacket) Encrypted() bool  { return true }

func (p *LoginPacket) EncodeBody(w *Writer) {
	w.WriteInt32(p.AccountID)
	w.WriteString(p.Token)
}

func (p *LoginPacket) DecodeBody(r *Reader) error {
	var err error
	if p.AccountID, err = r.ReadInt32(); err != nil {
		return err
	}
	p.Token, err = r.ReadString()
	return err
}

// DisconnectPacket is the peer's explicit goodbye. No reply is sent.
type DisconnectPacket struct{}

func (*DisconnectPacket) PacketID() uint16      { return IDDisconnect }
func (*DisconnectPacket) Encrypted() bool       { return false }
func (*DisconnectPacket) EncodeBody(*Writer)    {}
func (*DisconnectPacket) DecodeBody(*Reader) error { return nil }

// SyncIconsPacket overwrites the stored icon selection.
type SyncIconsPacket struct {
	Icons IconSet
}

func (*SyncIconsPacket) PacketID() uint16 { return IDSyncIcons }
func (*SyncIconsPacket) Encrypted() bool  { return false }

func (p *SyncIconsPacket) EncodeBody(w *Writer) {
	p.Icons.encode(w)
}

func (p *SyncIconsPacket) DecodeBody(r *Reader) error {
	return p.Icons.decode(r)
}

// MaxProfileRequestIDs caps the number of account ids in one profile request.
const MaxProfileRequestIDs = 128

// RequestProfilesPacket asks for profile data for a list of account ids.
type RequestProfilesPacket struct {
	IDs []int32
}

func (*RequestProfilesPacket) PacketID() uint16 { return IDRequestProfiles }
func (*RequestProfilesPacket) Encrypted() bool  { return false }

func (p *RequestProfilesPacket) EncodeBody(w *Writer) {
	w.WriteUint32(uint32(len(p.IDs)))
	for _, id := range p.IDs {
		w.WriteInt32(id)
	}
}

func (p *RequestProfilesPacket) DecodeBody(r *Reader) error {
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if count > MaxProfileRequestIDs {
		return ErrMalformedBody
	}
	p.IDs = make([]int32, count)
	for i := range p.IDs {
		if p.IDs[i], err = r.ReadInt32(); err != nil {
			return err
		}
	}
	return nil
}

// VoicePacket carries audio frames to relay to other players. Always
// encrypted.
type VoicePacket struct {
	Data VoiceData
}

func (*VoicePacket) PacketID() uint16 { return IDVoice }
func (*VoicePacket) Encrypted() bool  { return true }

func (p *VoicePacket) EncodeBody(w *Writer) {
	p.Data.encode(w)
}

func (p *VoicePacket) DecodeBody(r *Reader) error {
	return p.Data.decode(r)
}
