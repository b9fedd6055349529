// Package server exposes the codec over an HTTP inspection API.
package server

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/danmuck/esmwire/internal/auth"
	"github.com/danmuck/esmwire/internal/codec"
	"github.com/danmuck/esmwire/internal/observability"
	"github.com/danmuck/esmwire/internal/protocol"
)

const Version = "0.1.0"

type Config struct {
	ID          string
	Addr        string
	CORSOrigins []string
	// Validator guards the /v1 routes. Nil leaves them open.
	Validator auth.Validator
	// RateLimit caps /v1 requests per second across all clients. Zero disables it.
	RateLimit float64
	RateBurst int
}

type Server struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	codec     *codec.Service
	validator auth.Validator
	limiter   *rate.Limiter
	router    *gin.Engine
}

func New(cfg Config, svc *codec.Service) *Server {
	if cfg.ID == "" {
		cfg.ID = "esmwire"
	}
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Server{
		ID:        cfg.ID,
		Addr:      cfg.Addr,
		Appeared:  time.Now(),
		codec:     svc,
		validator: cfg.Validator,
		limiter:   limiter,
		router:    r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	log.Info().Str("server", s.ID).Str("addr", s.Addr).Str("format", s.codec.Format().String()).Msg("inspection api listening")
	return s.router.Run(s.Addr)
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.validator == nil {
			c.Next()
			return
		}
		if err := auth.CheckHeader(s.validator, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Server) limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	switch protocol.Classify(err) {
	case protocol.ClassNone:
		return http.StatusOK
	case protocol.ClassParse:
		return http.StatusBadRequest
	case protocol.ClassShape:
		return http.StatusUnprocessableEntity
	case protocol.ClassCrypto:
		return http.StatusUnauthorized
	case protocol.ClassRouting:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var ErrBadRequest = errors.New("server: malformed request body")

func fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if errors.Is(err, ErrBadRequest) {
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": err.Error(),
		"class": protocol.Classify(err).String(),
	})
}

// packetRoutesAllowed reports whether seal and open may be served. Those routes
// use the keyring, so without a validator they are bound to loopback only.
func (s *Server) packetRoutesAllowed() bool {
	return s.validator != nil || IsLoopback(s.Addr)
}

// IsLoopback reports whether addr listens on a loopback interface only. An
// empty host listens on every interface.
func IsLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
