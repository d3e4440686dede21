package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/riftlink/relay/internal/central"
	"github.com/riftlink/relay/internal/crypto"
	"github.com/riftlink/relay/internal/logging"
	"github.com/riftlink/relay/internal/metrics"
	"github.com/riftlink/relay/internal/protocol"
)

// maxDatagramSize is the largest datagram the read loop accepts.
const maxDatagramSize = 65536

// Config contains tuning parameters for the relay server.
type Config struct {
	// QueueSize is the per-actor inbound queue capacity. A full queue
	// suspends the producer.
	QueueSize int

	// IdleTimeout terminates an actor that receives no messages.
	IdleTimeout time.Duration

	// DatagramRate and DatagramBurst gate raw inbound datagrams per actor
	// before they reach the queue.
	DatagramRate  rate.Limit
	DatagramBurst int

	// StatsInterval is how often the registry logs aggregate statistics.
	// Zero disables the stats loop.
	StatsInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:     8,
		IdleTimeout:   60 * time.Second,
		DatagramRate:  rate.Limit(128),
		DatagramBurst: 256,
		StatsInterval: 5 * time.Minute,
	}
}

// Server is the connection registry and listener: it owns the shared UDP
// socket, the live-actor directory, the broadcast fan-out and the aggregate
// counters.
type Server struct {
	cfg     Config
	conn    *net.UDPConn
	keypair *crypto.Keypair
	bridge  *central.Bridge
	logger  *slog.Logger
	metrics *metrics.Metrics
	players *PlayerCounter

	mu     sync.RWMutex
	actors map[string]*Actor

	bootMu      sync.RWMutex
	boot        central.BootData
	chatBlocked map[int32]struct{}

	started    time.Time
	voiceBytes atomic.Uint64

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a relay server on an already-bound UDP socket. boot may be nil
// in standalone mode. A fresh static keypair is generated; clients learn the
// public half from the handshake response.
func New(conn *net.UDPConn, bridge *central.Bridge, boot *central.BootData, cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Server, error) {
	keypair, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:         cfg,
		conn:        conn,
		keypair:     keypair,
		bridge:      bridge,
		logger:      logger.With(slog.String(logging.KeyComponent, "relay")),
		metrics:     m,
		players:     NewPlayerCounter(m.PlayersOnline),
		actors:      make(map[string]*Actor),
		chatBlocked: make(map[int32]struct{}),
		started:     time.Now(),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}

	if boot != nil {
		s.SetBootData(*boot)
	}

	return s, nil
}

// PublicKey returns the server's static public key.
func (s *Server) PublicKey() [crypto.KeySize]byte {
	return s.keypair.Public
}

// PlayerCount returns the current authenticated player count.
func (s *Server) PlayerCount() uint32 {
	return s.players.Count()
}

// ActorCount returns the number of live connection actors.
func (s *Server) ActorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.started)
}

// SetBootData replaces the shared central configuration snapshot.
func (s *Server) SetBootData(boot central.BootData) {
	blocked := make(map[int32]struct{}, len(boot.ChatBlocked))
	for _, id := range boot.ChatBlocked {
		blocked[id] = struct{}{}
	}

	s.bootMu.Lock()
	s.boot = boot
	s.chatBlocked = blocked
	s.bootMu.Unlock()
}

// BootSnapshot returns a copy of the shared central configuration. The lock
// is held only for the duration of the copy, never across I/O.
func (s *Server) BootSnapshot() central.BootData {
	s.bootMu.RLock()
	defer s.bootMu.RUnlock()
	return s.boot
}

// ChatBlocked reports whether voice from the given account is blocked.
func (s *Server) ChatBlocked(accountID int32) bool {
	s.bootMu.RLock()
	defer s.bootMu.RUnlock()
	_, ok := s.chatBlocked[accountID]
	return ok
}

// Run reads datagrams from the socket and feeds per-peer actors until ctx is
// cancelled or the socket is closed.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.StatsInterval > 0 {
		s.wg.Add(1)
		go s.statsLoop()
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || s.ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}

		actor := s.actorFor(addr)

		if !actor.limiter.Allow() {
			s.metrics.DatagramsDropped.WithLabelValues("flood").Inc()
			actor.logger.Debug("dropping datagram, inbound rate exceeded")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		// A full queue suspends the read loop until the actor drains a slot.
		if err := actor.EnqueueRaw(ctx, data); err != nil {
			if errors.Is(err, ErrActorTerminated) {
				s.metrics.DatagramsDropped.WithLabelValues("terminated").Inc()
				continue
			}
			return err
		}
	}
}

// actorFor returns the live actor for addr, creating and starting one for a
// previously unseen peer address.
func (s *Server) actorFor(addr *net.UDPAddr) *Actor {
	key := addr.String()

	s.mu.RLock()
	actor, ok := s.actors[key]
	s.mu.RUnlock()
	if ok {
		return actor
	}

	s.mu.Lock()
	if actor, ok = s.actors[key]; ok {
		s.mu.Unlock()
		return actor
	}

	actor = newActor(s, addr)
	s.actors[key] = actor
	s.mu.Unlock()

	s.metrics.ConnectionsActive.Inc()
	s.metrics.ConnectionsTotal.Inc()
	actor.logger.Debug("new connection actor")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		actor.Run()
		s.removeActor(actor)
	}()

	return actor
}

// removeActor drops an actor whose loop has exited. An authenticated actor
// leaving decrements the player count, pairing the increment done at login.
func (s *Server) removeActor(a *Actor) {
	s.mu.Lock()
	if current, ok := s.actors[a.peer.String()]; ok && current == a {
		delete(s.actors, a.peer.String())
	}
	s.mu.Unlock()

	a.cancel()
	s.metrics.ConnectionsActive.Dec()
	if a.Authenticated() {
		s.players.Decrement()
	}
	a.logger.Debug("connection actor removed")
}

// BroadcastVoice fans a voice packet out to every other authenticated
// actor's queue. Enqueueing respects each receiver's backpressure; a
// terminated receiver is skipped.
func (s *Server) BroadcastVoice(ctx context.Context, sender *Actor, pkt *protocol.VoiceBroadcastPacket) error {
	s.mu.RLock()
	targets := make([]*Actor, 0, len(s.actors))
	for _, a := range s.actors {
		if a == sender || !a.Authenticated() {
			continue
		}
		targets = append(targets, a)
	}
	s.mu.RUnlock()

	for _, a := range targets {
		if err := a.EnqueueVoice(ctx, pkt); err != nil {
			if errors.Is(err, ErrActorTerminated) {
				continue
			}
			return err
		}
	}
	return nil
}

// BroadcastNotice sends an operator message to every authenticated player.
// Delivery is direct and best-effort; send failures are logged per peer.
func (s *Server) BroadcastNotice(text string) {
	data, err := protocol.Encode(&protocol.ServerNoticePacket{Message: text}, nil)
	if err != nil {
		s.logger.Warn("failed to encode notice", slog.String(logging.KeyError, err.Error()))
		return
	}

	s.mu.RLock()
	targets := make([]*Actor, 0, len(s.actors))
	for _, a := range s.actors {
		if a.Authenticated() {
			targets = append(targets, a)
		}
	}
	s.mu.RUnlock()

	for _, a := range targets {
		if err := s.sendTo(data, a.peer); err != nil {
			a.logger.Warn("failed to deliver notice", slog.String(logging.KeyError, err.Error()))
		}
	}
}

// GatherProfiles resolves account ids to profile data from the live-actor
// directory. Unknown ids are skipped.
func (s *Server) GatherProfiles(ids []int32) []protocol.PlayerAccountData {
	wanted := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]protocol.PlayerAccountData, 0, len(ids))
	for _, a := range s.actors {
		if !a.Authenticated() {
			continue
		}
		if _, ok := wanted[a.AccountID()]; !ok {
			continue
		}
		profiles = append(profiles, a.AccountData())
	}
	return profiles
}

// Stop terminates all actors and waits for their loops to exit.
func (s *Server) Stop() {
	s.cancel()

	s.mu.RLock()
	actors := make([]*Actor, 0, len(s.actors))
	for _, a := range s.actors {
		actors = append(actors, a)
	}
	s.mu.RUnlock()

	for _, a := range actors {
		a.Terminate()
	}

	s.wg.Wait()
}

func (s *Server) sendTo(data []byte, addr *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(data, addr)
	if err == nil {
		s.metrics.PacketsSent.Inc()
	}
	return err
}

func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.logger.Info("relay stats",
				slog.Int("actors", s.ActorCount()),
				slog.Uint64(logging.KeyPlayers, uint64(s.players.Count())),
				slog.String("voice_relayed", humanize.Bytes(s.voiceBytes.Load())))
		}
	}
}
