// Package codec bundles the payload codec and packet envelope behind one
// service that logs and records metrics for every call.
package codec

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/esmwire/internal/observability"
	"github.com/danmuck/esmwire/internal/protocol"
	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/frame"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/seal"
	"github.com/danmuck/esmwire/internal/protocol/value"
)

// Config configures a Service.
type Config struct {
	Format schema.Format
	Limits frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Format: schema.FormatPairs,
		Limits: frame.DefaultLimits(),
	}
}

// Service is safe for concurrent use when keys is.
type Service struct {
	cfg    Config
	keys   seal.KeyLookup
	logger zerolog.Logger
}

func NewService(cfg Config, keys seal.KeyLookup, logger zerolog.Logger) *Service {
	if cfg.Limits.MaxPacketBytes <= 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	return &Service{cfg: cfg, keys: keys, logger: logger.With().Str("component", "codec").Logger()}
}

func (s *Service) Format() schema.Format { return s.cfg.Format }

// DecodeData decodes host text in the service format.
func (s *Service) DecodeData(raw string) (data.Data, error) {
	start := time.Now()
	d, err := data.DecodeHost(raw, s.cfg.Format)
	s.recordPayload("decode", "data", err, start, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("variant", data.Tag(d))
	})
	return d, err
}

func (s *Service) DecodeMetadata(raw string) (metadata.Metadata, error) {
	start := time.Now()
	md, err := metadata.DecodeHost(raw, s.cfg.Format)
	s.recordPayload("decode", "metadata", err, start, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("variant", metadata.Tag(md))
	})
	return md, err
}

// EncodeData renders d as host text.
func (s *Service) EncodeData(d data.Data) (string, error) {
	start := time.Now()
	tree, err := data.EncodeHost(d, s.cfg.Format)
	s.recordPayload("encode", "data", err, start, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("variant", data.Tag(d))
	})
	if err != nil {
		return "", err
	}
	return value.Render(tree), nil
}

func (s *Service) EncodeMetadata(md metadata.Metadata) (string, error) {
	start := time.Now()
	tree, err := metadata.EncodeHost(md, s.cfg.Format)
	s.recordPayload("encode", "metadata", err, start, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("variant", metadata.Tag(md))
	})
	if err != nil {
		return "", err
	}
	return value.Render(tree), nil
}

// Seal encrypts m for its peer.
func (s *Service) Seal(m *protocol.Message) ([]byte, error) {
	packet, err := protocol.Encrypt(m, s.keys)
	if err == nil && len(packet) > s.cfg.Limits.MaxPacketBytes {
		err = fmt.Errorf("%w: %d > %d", frame.ErrPacketTooLarge, len(packet), s.cfg.Limits.MaxPacketBytes)
		packet = nil
	}
	s.recordPacket("seal", m, len(packet), err)
	return packet, err
}

// Open decrypts packet with the key of the peer it names.
func (s *Service) Open(packet []byte) (*protocol.Message, error) {
	var (
		m   *protocol.Message
		err error
	)
	if len(packet) > s.cfg.Limits.MaxPacketBytes {
		err = fmt.Errorf("%w: %d > %d", frame.ErrPacketTooLarge, len(packet), s.cfg.Limits.MaxPacketBytes)
	} else {
		m, err = protocol.Decrypt(packet, s.keys)
	}
	s.recordPacket("open", m, len(packet), err)
	return m, err
}

// FromHost builds a message from host strings in the service format.
func (s *Service) FromHost(h protocol.HostMessage) (*protocol.Message, error) {
	start := time.Now()
	m, err := protocol.FromHost(h, s.cfg.Format)
	s.recordPayload("decode", "message", err, start, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("type", h.Type)
	})
	return m, err
}

func (s *Service) ToHost(m *protocol.Message) (protocol.HostMessage, error) {
	start := time.Now()
	h, err := m.ToHost(s.cfg.Format)
	s.recordPayload("encode", "message", err, start, func(e *zerolog.Event) *zerolog.Event {
		return e.Str("type", m.Type.String())
	})
	return h, err
}

func (s *Service) recordPayload(op, slot string, err error, start time.Time, fields func(*zerolog.Event) *zerolog.Event) {
	class := protocol.Classify(err)
	observability.RecordPayload(op, slot, s.cfg.Format.String(), outcome(class), time.Since(start))
	if err != nil {
		s.logger.Warn().Str("op", op).Str("slot", slot).Str("class", class.String()).Err(err).Msg("payload failed")
		return
	}
	fields(s.logger.Debug().Str("op", op).Str("slot", slot)).Msg("payload ok")
}

func (s *Service) recordPacket(direction string, m *protocol.Message, size int, err error) {
	class := protocol.Classify(err)
	observability.RecordPacket(direction, outcome(class), size)
	if err != nil {
		s.logger.Warn().Str("direction", direction).Str("class", class.String()).Int("bytes", size).Err(err).Msg("packet failed")
		return
	}
	s.logger.Debug().
		Str("direction", direction).
		Str("id", m.ID.String()).
		Str("type", m.Type.String()).
		Bytes("peer_id", m.PeerID).
		Int("bytes", size).
		Msg("packet ok")
}

func outcome(c protocol.Class) string {
	if c == protocol.ClassNone {
		return "ok"
	}
	return c.String()
}
