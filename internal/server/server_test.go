package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/danmuck/esmwire/internal/auth"
	"github.com/danmuck/esmwire/internal/codec"
	"github.com/danmuck/esmwire/internal/protocol"
	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/frame"
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/seal"
	"github.com/danmuck/esmwire/internal/protocol/value"
	"github.com/danmuck/esmwire/internal/testutil/payloadtest"
	"github.com/danmuck/esmwire/internal/testutil/testlog"
)

func newTestServer(t *testing.T, validator auth.Validator) (*Server, *codec.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := codec.NewService(codec.DefaultConfig(), payloadtest.Keys(payloadtest.Key(9, seal.KeySize)), zerolog.Nop())
	s := New(Config{ID: "esmwire-test", Addr: "127.0.0.1:0", Validator: validator}, svc)
	s.RegisterRoutes()
	return s, svc
}

func post(t *testing.T, s *Server, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %s: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)

	for _, path := range []string{"/health", "/metrics"} {
		rr := httptest.NewRecorder()
		s.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decodeBody[map[string]any](t, rr)
	if body["service"] != "esmwire-test" || body["format"] != "pairs" {
		t.Fatalf("unexpected health body %#v", body)
	}
}

func TestDecodeDataRoute(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)

	rr := post(t, s, "/v1/data/decode", RawRequest{Raw: `[["type","test"],["content",[["foo","bar"]]]]`}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[PayloadResponse](t, rr)
	if resp.Type != "test" {
		t.Fatalf("expected type test, got %q", resp.Type)
	}
	d, err := data.UnmarshalJSON(resp.Payload)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got := payloadtest.Must[data.Test](t, d); got.Foo != "bar" {
		t.Fatalf("expected foo=bar, got %+v", got)
	}
}

func TestEncodeDecodeRoutesRoundTrip(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)

	payload, err := data.MarshalJSON(payloadtest.Init())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr := post(t, s, "/v1/data/encode", PayloadRequest{Payload: payload}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("encode: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	raw := decodeBody[RawResponse](t, rr).Raw

	rr = post(t, s, "/v1/data/decode", RawRequest{Raw: raw}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("decode: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if resp := decodeBody[PayloadResponse](t, rr); resp.Type != "init" {
		t.Fatalf("expected init, got %q", resp.Type)
	}

	md, err := json.Marshal(map[string]any{"type": "test", "content": map[string]any{"foo": "bar"}})
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	rr = post(t, s, "/v1/metadata/encode", PayloadRequest{Payload: md}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metadata encode: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = post(t, s, "/v1/metadata/decode", RawRequest{Raw: decodeBody[RawResponse](t, rr).Raw}, nil)
	if resp := decodeBody[PayloadResponse](t, rr); rr.Code != http.StatusOK || resp.Type != "test" {
		t.Fatalf("metadata decode: got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSealOpenRoutes(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)

	m := protocol.New(protocol.TypeConnect).SetPeerID(payloadtest.PeerID).SetData(payloadtest.Init())
	body, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	rr := post(t, s, "/v1/packets/seal", MessageRequest{Message: body}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("seal: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	sealed := decodeBody[PacketResponse](t, rr)
	if sealed.Bytes != len(sealed.Packet) || sealed.Bytes == 0 {
		t.Fatalf("unexpected packet response %+v", sealed)
	}

	rr = post(t, s, "/v1/packets/open", PacketRequest{Packet: sealed.Packet}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	opened := decodeBody[MessageResponse](t, rr)
	if opened.PeerID != string(payloadtest.PeerID) {
		t.Fatalf("expected peer %q, got %q", payloadtest.PeerID, opened.PeerID)
	}
	var got protocol.Message
	if err := got.UnmarshalJSON(opened.Message); err != nil {
		t.Fatalf("unmarshal opened message: %v", err)
	}
	if got.ID != m.ID {
		t.Fatalf("expected id %s, got %s", m.ID, got.ID)
	}
}

func TestHostMessageRoute(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)

	req := HostRequest{
		ID:     "b2d1a5d0-7a4e-4f4e-9c1b-3d6f2a1e8c90",
		Type:   "event",
		Data:   `[["type","test"],["content",[["foo","bar"]]]]`,
		Errors: `[[["type","code"],["content","client_not_found"]]]`,
	}
	rr := post(t, s, "/v1/host/message", req, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var got protocol.Message
	if err := got.UnmarshalJSON(decodeBody[MessageResponse](t, rr).Message); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != protocol.TypeEvent || len(got.Errors) != 1 {
		t.Fatalf("unexpected message %s", &got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)

	strangerSvc := codec.NewService(codec.DefaultConfig(), seal.KeyFunc(func([]byte) ([]byte, bool) {
		return payloadtest.Key(1, seal.KeySize), true
	}), zerolog.Nop())
	stranger, err := strangerSvc.Seal(protocol.New(protocol.TypePing).SetPeerID([]byte("stranger")))
	if err != nil {
		t.Fatalf("seal stranger: %v", err)
	}
	forged, err := strangerSvc.Seal(protocol.New(protocol.TypePing).SetPeerID(payloadtest.PeerID))
	if err != nil {
		t.Fatalf("seal forged: %v", err)
	}

	cases := []struct {
		name   string
		path   string
		body   any
		status int
		class  string
	}{
		{"malformed body", "/v1/data/decode", "not an object", http.StatusBadRequest, "internal"},
		{"syntax", "/v1/data/decode", RawRequest{Raw: `[["type",`}, http.StatusBadRequest, "parse"},
		{"unknown variant", "/v1/data/decode", RawRequest{Raw: `[["type","nope"]]`}, http.StatusUnprocessableEntity, "shape"},
		{"truncated packet", "/v1/packets/open", PacketRequest{Packet: []byte{4, 'a'}}, http.StatusBadRequest, "parse"},
		{"unknown peer", "/v1/packets/open", PacketRequest{Packet: stranger}, http.StatusNotFound, "routing"},
		{"wrong key", "/v1/packets/open", PacketRequest{Packet: forged}, http.StatusUnauthorized, "crypto"},
		{"bad host type", "/v1/host/message", HostRequest{ID: "x", Type: "bogus"}, http.StatusUnprocessableEntity, "shape"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, s, tc.path, tc.body, nil)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d body=%s", tc.status, rr.Code, rr.Body.String())
			}
			if body := decodeBody[map[string]string](t, rr); body["class"] != tc.class {
				t.Fatalf("expected class %q, got %#v", tc.class, body)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", value.ErrSyntax), http.StatusBadRequest},
		{&schema.ShapeError{Type: "data", Reason: "x"}, http.StatusUnprocessableEntity},
		{seal.ErrDecrypt, http.StatusUnauthorized},
		{seal.ErrUnknownPeer, http.StatusNotFound},
		{frame.ErrTruncated, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.status {
			t.Fatalf("StatusFor(%v): expected %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestBearerTokenGuardsV1(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, auth.StaticToken{Token: "secret"})
	body := RawRequest{Raw: `[["type","test"],["content",[["foo","bar"]]]]`}

	if rr := post(t, s, "/v1/data/decode", body, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	wrong := http.Header{"Authorization": {"Bearer nope"}}
	if rr := post(t, s, "/v1/data/decode", body, wrong); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rr.Code)
	}
	ok := http.Header{"Authorization": {"Bearer secret"}}
	if rr := post(t, s, "/v1/data/decode", body, ok); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("expected open /health, got %d", rr.Code)
	}
}

func TestRateLimitV1(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	svc := codec.NewService(codec.DefaultConfig(), nil, zerolog.Nop())
	s := New(Config{ID: "esmwire-limited", RateLimit: 0.001, RateBurst: 2}, svc)
	s.RegisterRoutes()
	body := RawRequest{Raw: "nil"}

	for i := 0; i < 2; i++ {
		if rr := post(t, s, "/v1/data/decode", body, nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d body=%s", i, rr.Code, rr.Body.String())
		}
	}
	if rr := post(t, s, "/v1/data/decode", body, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rr.Code)
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected /health outside the limit, got %d", rr.Code)
	}
}

func TestJWTGuardsV1(t *testing.T) {
	testlog.Start(t)
	secret := []byte("inspection-secret")
	s, _ := newTestServer(t, auth.AnyOf{auth.JWTHS256{Secret: secret, Issuer: "esmctl"}})
	token, err := auth.SignHS256(secret, "esmctl", "ops", 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	body := RawRequest{Raw: "nil"}
	if rr := post(t, s, "/v1/data/decode", body, http.Header{"Authorization": {"Bearer " + token}}); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with jwt, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := post(t, s, "/v1/data/decode", body, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without jwt, got %d", rr.Code)
	}
}

func TestPacketRoutesNeedAuthOffLoopback(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	svc := codec.NewService(codec.DefaultConfig(), payloadtest.Keys(payloadtest.Key(9, seal.KeySize)), zerolog.Nop())

	open := New(Config{ID: "esmwire-open", Addr: ":3003"}, svc)
	open.RegisterRoutes()
	m := protocol.New(protocol.TypeArma).SetPeerID(payloadtest.PeerID)
	body, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if rr := post(t, open, "/v1/packets/seal", MessageRequest{Message: body}, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected seal route absent without auth, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr := post(t, open, "/v1/packets/open", PacketRequest{Packet: []byte{1}}, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected open route absent without auth, got %d", rr.Code)
	}
	if rr := post(t, open, "/v1/data/decode", RawRequest{Raw: "nil"}, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected payload routes to stay available, got %d", rr.Code)
	}

	guarded := New(Config{ID: "esmwire-guarded", Addr: ":3003", Validator: auth.StaticToken{Token: "secret"}}, svc)
	guarded.RegisterRoutes()
	if rr := post(t, guarded, "/v1/packets/seal", MessageRequest{Message: body}, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	ok := http.Header{"Authorization": {"Bearer secret"}}
	if rr := post(t, guarded, "/v1/packets/seal", MessageRequest{Message: body}, ok); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestIsLoopback(t *testing.T) {
	testlog.Start(t)
	cases := map[string]bool{
		"127.0.0.1:3003": true,
		"[::1]:3003":     true,
		"localhost:3003": true,
		":3003":          false,
		"0.0.0.0:3003":   false,
		"10.0.0.5:3003":  false,
		"":               false,
	}
	for addr, want := range cases {
		if got := IsLoopback(addr); got != want {
			t.Fatalf("IsLoopback(%q): expected %v, got %v", addr, want, got)
		}
	}
}
