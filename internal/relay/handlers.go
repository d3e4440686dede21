package relay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/riftlink/relay/internal/central"
	"github.com/riftlink/relay/internal/crypto"
	"github.com/riftlink/relay/internal/logging"
	"github.com/riftlink/relay/internal/protocol"
)

// voiceThroughputLimitKBps is the per-connection voice relay ceiling.
const voiceThroughputLimitKBps = 8.0

// handlePacket routes a decoded packet to its typed handler and returns the
// optional reply. The packet set is closed, so dispatch is a type switch on
// the concrete variants produced by the codec.
func (a *Actor) handlePacket(p protocol.Packet) (protocol.Packet, error) {
	switch pkt := p.(type) {
	case *protocol.PingPacket:
		return a.handlePing(pkt)
	case *protocol.CryptoHandshakeStartPacket:
		return a.handleCryptoHandshake(pkt)
	case *protocol.KeepalivePacket:
		return a.handleKeepalive(pkt)
	case *protocol.LoginPacket:
		return a.handleLogin(pkt)
	case *protocol.DisconnectPacket:
		return a.handleDisconnect(pkt)
	case *protocol.SyncIconsPacket:
		return a.handleSyncIcons(pkt)
	case *protocol.RequestProfilesPacket:
		return a.handleRequestProfiles(pkt)
	case *protocol.VoicePacket:
		return a.handleVoice(pkt)
	default:
		return nil, fmt.Errorf("no handler for packet id %d", p.PacketID())
	}
}

// requireAuth returns the reply for an unauthenticated peer hitting a
// protected handler, or nil if the peer is logged in. Only a reply is sent;
// the actor is not terminated server-side, the peer is expected to close.
func (a *Actor) requireAuth() protocol.Packet {
	if a.authenticated.Load() {
		return nil
	}
	return &protocol.ServerDisconnectPacket{Message: "not logged in"}
}

func (a *Actor) handlePing(pkt *protocol.PingPacket) (protocol.Packet, error) {
	return &protocol.PingResponsePacket{
		ID:          pkt.ID,
		PlayerCount: a.srv.players.Count(),
	}, nil
}

func (a *Actor) handleCryptoHandshake(pkt *protocol.CryptoHandshakeStartPacket) (protocol.Packet, error) {
	switch {
	case pkt.Protocol > protocol.Version:
		a.Terminate()
		return &protocol.ServerDisconnectPacket{
			Message: fmt.Sprintf(
				"Outdated server! You are running protocol v%d while the server is still on v%d.",
				pkt.Protocol, protocol.Version),
		}, nil
	case pkt.Protocol < protocol.Version:
		a.Terminate()
		return &protocol.ServerDisconnectPacket{
			Message: fmt.Sprintf(
				"Outdated client! Please update the mod in order to connect to the server. Client protocol version: v%d, server: v%d",
				pkt.Protocol, protocol.Version),
		}, nil
	}

	// First handshake wins. The actor is tied to the peer address, so a
	// reconnecting client arrives on a fresh port and a fresh actor.
	if a.sess != nil {
		return nil, errors.New("attempting to initialize a crypto session twice")
	}

	sess, err := crypto.NewSession(a.srv.keypair, pkt.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("session setup failed: %w", err)
	}
	a.sess = sess

	return &protocol.CryptoHandshakeResponsePacket{PublicKey: a.srv.keypair.Public}, nil
}

func (a *Actor) handleKeepalive(*protocol.KeepalivePacket) (protocol.Packet, error) {
	if reply := a.requireAuth(); reply != nil {
		return reply, nil
	}
	return &protocol.KeepaliveResponsePacket{PlayerCount: a.srv.players.Count()}, nil
}

func (a *Actor) handleLogin(pkt *protocol.LoginPacket) (protocol.Packet, error) {
	// Snapshot shared configuration under the read lock and release it
	// before any network round trip.
	boot := a.srv.BootSnapshot()

	if boot.Maintenance {
		a.Terminate()
		a.srv.metrics.LoginsTotal.WithLabelValues("maintenance").Inc()
		return &protocol.LoginFailedPacket{
			Message: "authentication failed: the server is currently under maintenance",
		}, nil
	}

	var name string
	if a.srv.bridge.Standalone() {
		// Authentication is disabled; accept the claimed account id.
		name = fmt.Sprintf("Player%d", pkt.AccountID)
	} else {
		verified, err := a.srv.bridge.VerifyToken(a.ctx, pkt.AccountID, pkt.Token)
		if err != nil {
			var denied *central.AuthDeniedError
			if errors.As(err, &denied) {
				a.Terminate()
				a.srv.metrics.LoginsTotal.WithLabelValues("denied").Inc()
				return &protocol.LoginFailedPacket{
					Message: fmt.Sprintf("authentication failed: %s", denied.Response),
				}, nil
			}
			// Transport-level trouble talking to the central server is a
			// handler failure, not a reason to tear the connection down.
			a.srv.metrics.LoginsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("token verification failed: %w", err)
		}
		name = verified
	}

	a.authenticated.Store(true)
	a.accountID.CompareAndSwap(0, pkt.AccountID)
	a.srv.players.Increment()
	a.srv.metrics.LoginsTotal.WithLabelValues("ok").Inc()

	a.mu.Lock()
	a.accountData.AccountID = pkt.AccountID
	a.accountData.Name = name
	a.mu.Unlock()

	a.logger.Debug("login successful",
		slog.String("name", name),
		slog.Int(logging.KeyAccountID, int(pkt.AccountID)))

	return &protocol.LoggedInPacket{}, nil
}

func (a *Actor) handleDisconnect(*protocol.DisconnectPacket) (protocol.Packet, error) {
	a.Terminate()
	return nil, nil
}

func (a *Actor) handleSyncIcons(pkt *protocol.SyncIconsPacket) (protocol.Packet, error) {
	if reply := a.requireAuth(); reply != nil {
		return reply, nil
	}

	a.mu.Lock()
	a.accountData.Icons = pkt.Icons
	a.mu.Unlock()
	return nil, nil
}

func (a *Actor) handleRequestProfiles(pkt *protocol.RequestProfilesPacket) (protocol.Packet, error) {
	if reply := a.requireAuth(); reply != nil {
		return reply, nil
	}

	return &protocol.PlayerProfilesPacket{
		Profiles: a.srv.GatherProfiles(pkt.IDs),
	}, nil
}

func (a *Actor) handleVoice(pkt *protocol.VoicePacket) (protocol.Packet, error) {
	if reply := a.requireAuth(); reply != nil {
		return reply, nil
	}

	accountID := a.accountID.Load()
	if a.srv.ChatBlocked(accountID) {
		a.logger.Debug("blocking voice packet", slog.Int(logging.KeyAccountID, int(accountID)))
		a.srv.metrics.VoiceDropped.WithLabelValues("blocked").Inc()
		return nil, nil
	}

	// Throughput gate. The timestamp is updated on every voice packet, even
	// ones rejected below, so a flood cannot spread its cost over a long
	// idle gap.
	now := a.srv.now()
	elapsed := now.Sub(a.lastVoice)
	a.lastVoice = now

	size := pkt.Data.TotalSize()
	throughput := float64(size) / float64(elapsed.Milliseconds()) // numerically KB/s
	if throughput > voiceThroughputLimitKBps {
		a.logger.Warn("rejecting voice packet, throughput above the limit",
			slog.Float64("kbps", throughput))
		a.srv.metrics.VoiceDropped.WithLabelValues("rate_limited").Inc()
		return nil, nil
	}

	broadcast := &protocol.VoiceBroadcastPacket{
		PlayerID: accountID,
		Data:     pkt.Data,
	}

	if err := a.srv.BroadcastVoice(a.ctx, a, broadcast); err != nil {
		return nil, fmt.Errorf("failed to broadcast voice packet: %w", err)
	}

	a.srv.metrics.VoiceRelayed.Inc()
	a.srv.metrics.VoiceBytes.Add(float64(size))
	a.srv.voiceBytes.Add(uint64(size))

	return nil, nil
}
