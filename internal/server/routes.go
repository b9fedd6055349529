package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/esmwire/internal/protocol"
	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
)

// RawRequest carries host text.
type RawRequest struct {
	Raw string `json:"raw"`
}

// RawResponse carries rendered host text.
type RawResponse struct {
	Raw string `json:"raw"`
}

// PayloadRequest carries a {type, content} envelope as a JSON object.
type PayloadRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type PayloadResponse struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type PacketRequest struct {
	Packet []byte `json:"packet"`
}

type PacketResponse struct {
	Packet []byte `json:"packet"`
	Bytes  int    `json:"bytes"`
}

type MessageRequest struct {
	Message json.RawMessage `json:"message"`
}

type MessageResponse struct {
	PeerID  string          `json:"peer_id,omitempty"`
	Message json.RawMessage `json:"message"`
}

// HostRequest is a message as five host strings.
type HostRequest struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Data     string `json:"data"`
	Metadata string `json:"metadata"`
	Errors   string `json:"errors"`
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"format":  s.codec.Format().String(),
			"version": Version,
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1", s.limit(), s.requireToken())
	v1.POST("/data/decode", s.decodeData)
	v1.POST("/metadata/decode", s.decodeMetadata)
	v1.POST("/data/encode", s.encodeData)
	v1.POST("/metadata/encode", s.encodeMetadata)
	if s.packetRoutesAllowed() {
		v1.POST("/packets/open", s.openPacket)
		v1.POST("/packets/seal", s.sealPacket)
	} else {
		log.Warn().Str("server", s.ID).Str("addr", s.Addr).Msg("packet routes disabled: no bearer validator on a non-loopback address")
	}
	v1.POST("/host/message", s.hostMessage)
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return false
	}
	return true
}

func (s *Server) decodeData(c *gin.Context) {
	var req RawRequest
	if !bind(c, &req) {
		return
	}
	d, err := s.codec.DecodeData(req.Raw)
	if err != nil {
		fail(c, err)
		return
	}
	body, err := data.MarshalJSON(d)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PayloadResponse{Type: data.Tag(d), Payload: body})
}

func (s *Server) decodeMetadata(c *gin.Context) {
	var req RawRequest
	if !bind(c, &req) {
		return
	}
	md, err := s.codec.DecodeMetadata(req.Raw)
	if err != nil {
		fail(c, err)
		return
	}
	body, err := metadata.MarshalJSON(md)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PayloadResponse{Type: metadata.Tag(md), Payload: body})
}

func (s *Server) encodeData(c *gin.Context) {
	var req PayloadRequest
	if !bind(c, &req) {
		return
	}
	d, err := data.UnmarshalJSON(req.Payload)
	if err != nil {
		fail(c, err)
		return
	}
	raw, err := s.codec.EncodeData(d)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RawResponse{Raw: raw})
}

func (s *Server) encodeMetadata(c *gin.Context) {
	var req PayloadRequest
	if !bind(c, &req) {
		return
	}
	md, err := metadata.UnmarshalJSON(req.Payload)
	if err != nil {
		fail(c, err)
		return
	}
	raw, err := s.codec.EncodeMetadata(md)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RawResponse{Raw: raw})
}

func (s *Server) openPacket(c *gin.Context) {
	var req PacketRequest
	if !bind(c, &req) {
		return
	}
	m, err := s.codec.Open(req.Packet)
	if err != nil {
		fail(c, err)
		return
	}
	m.AttachSession(&protocol.Session{RemoteAddr: c.ClientIP()})
	s.writeMessage(c, m)
}

func (s *Server) sealPacket(c *gin.Context) {
	var req MessageRequest
	if !bind(c, &req) {
		return
	}
	var m protocol.Message
	if err := m.UnmarshalJSON(req.Message); err != nil {
		fail(c, err)
		return
	}
	packet, err := s.codec.Seal(&m)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PacketResponse{Packet: packet, Bytes: len(packet)})
}

func (s *Server) hostMessage(c *gin.Context) {
	var req HostRequest
	if !bind(c, &req) {
		return
	}
	m, err := s.codec.FromHost(protocol.HostMessage(req))
	if err != nil {
		fail(c, err)
		return
	}
	s.writeMessage(c, m)
}

func (s *Server) writeMessage(c *gin.Context, m *protocol.Message) {
	body, err := m.MarshalJSON()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{PeerID: string(m.PeerID), Message: body})
}
