package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/esmwire/internal/protocol/data"
	"github.com/danmuck/esmwire/internal/protocol/frame"
	"github.com/danmuck/esmwire/internal/protocol/metadata"
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/seal"
	"github.com/danmuck/esmwire/internal/testutil/testlog"
)

var testingPeer = []byte("esm_testing")

func keysFor(peer []byte, key []byte) seal.KeyFunc {
	return func(id []byte) ([]byte, bool) {
		if bytes.Equal(id, peer) {
			return key, true
		}
		return nil, false
	}
}

// A key built from four uuids is longer than 32 bytes; only the prefix is used.
func uuidKey() []byte {
	return []byte(fmt.Sprintf("%s-%s-%s-%s", uuid.New(), uuid.New(), uuid.New(), uuid.New()))
}

func sampleInit() data.Init {
	return data.Init{
		ExtensionVersion:  "2.0.0",
		PricePerObject:    "10",
		ServerName:        "server_name",
		ServerStartTime:   time.Now().UTC().Truncate(time.Microsecond),
		TerritoryData:     "[]",
		TerritoryLifetime: "7",
		VGEnabled:         false,
		VGMaxSizes:        "",
	}
}

func TestEncryptDecryptInitScenario(t *testing.T) {
	testlog.Start(t)
	key := uuidKey()
	keys := keysFor(testingPeer, key)

	expected := sampleInit()
	m := New(TypeConnect).SetPeerID(testingPeer).SetData(expected)

	packet, err := Encrypt(m, keys)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := Decrypt(packet, keys)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got.Type != TypeConnect || got.ID != m.ID {
		t.Fatalf("unexpected envelope %s", got)
	}
	if !bytes.Equal(got.PeerID, testingPeer) {
		t.Fatalf("expected peer id %q, got %q", testingPeer, got.PeerID)
	}
	initData, err := data.As[data.Init](got.Data)
	if err != nil {
		t.Fatalf("as init: %v", err)
	}
	if !initData.ServerStartTime.Equal(expected.ServerStartTime) {
		t.Fatalf("expected start time %s, got %s", expected.ServerStartTime, initData.ServerStartTime)
	}
	initData.ServerStartTime = expected.ServerStartTime
	if !reflect.DeepEqual(initData, expected) {
		t.Fatalf("expected %+v, got %+v", expected, initData)
	}
	if !metadata.IsEmpty(got.Metadata) || len(got.Errors) != 0 {
		t.Fatalf("expected empty metadata and errors, got %s", got)
	}
}

func TestEncryptDecryptFullMessage(t *testing.T) {
	testlog.Start(t)
	keys := keysFor(testingPeer, bytes.Repeat([]byte{7}, 32))
	m := New(TypeArma).
		SetPeerID(testingPeer).
		SetData(data.Reward{PlayerPoptabs: ptr("123456789012345")}).
		SetMetadata(metadata.Command{Player: metadata.Player{SteamUID: "76561198000000001"}}).
		AddError(ErrorMessage, "This is a message").
		AddError(ErrorCode, "CODING")
	m.AttachSession(&Session{ResourceID: 9})

	packet, err := Encrypt(m, keys)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := Decrypt(packet, keys)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got.Session != nil {
		t.Fatalf("expected session to stay local")
	}
	if !reflect.DeepEqual(got.Data, m.Data) || !reflect.DeepEqual(got.Metadata, m.Metadata) {
		t.Fatalf("payload mismatch: %s", got)
	}
	if !reflect.DeepEqual(got.Errors, m.Errors) {
		t.Fatalf("expected errors in insertion order %v, got %v", m.Errors, got.Errors)
	}
}

func TestDecryptTamperAndWrongKey(t *testing.T) {
	testlog.Start(t)
	key := bytes.Repeat([]byte{1}, 32)
	keys := keysFor(testingPeer, key)
	packet, err := Encrypt(New(TypePing).SetPeerID(testingPeer), keys)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	nonceAt := 1 + len(testingPeer) + 1

	for at := nonceAt; at < len(packet); at++ {
		for bit := 0; bit < 8; bit++ {
			_, err := Decrypt(flip(packet, at, bit), keys)
			if !errors.Is(err, seal.ErrDecrypt) {
				t.Fatalf("byte %d bit %d: expected ErrDecrypt, got %v", at, bit, err)
			}
			if Classify(err) != ClassCrypto {
				t.Fatalf("byte %d bit %d: expected crypto class, got %s", at, bit, Classify(err))
			}
		}
	}

	_, err = Decrypt(packet, keysFor(testingPeer, bytes.Repeat([]byte{2}, 32)))
	if !errors.Is(err, seal.ErrDecrypt) {
		t.Fatalf("wrong key: expected ErrDecrypt, got %v", err)
	}
	if Classify(err) != ClassCrypto {
		t.Fatalf("wrong key: expected crypto class, got %s", Classify(err))
	}
}

func flip(packet []byte, at, bit int) []byte {
	out := append([]byte(nil), packet...)
	out[at] ^= 1 << bit
	return out
}

func TestEncryptDecryptRoutingErrors(t *testing.T) {
	testlog.Start(t)
	keys := keysFor(testingPeer, bytes.Repeat([]byte{1}, 32))

	if _, err := Encrypt(New(TypePing), keys); !errors.Is(err, ErrMissingPeerID) {
		t.Fatalf("expected ErrMissingPeerID, got %v", err)
	}
	if _, err := Encrypt(New(TypePing).SetPeerID([]byte("other")), keys); !errors.Is(err, seal.ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
	short := keysFor(testingPeer, []byte("too-short"))
	if _, err := Encrypt(New(TypePing).SetPeerID(testingPeer), short); !errors.Is(err, seal.ErrKeyTooShort) {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}

	packet, _ := frame.Encode(frame.Frame{PeerID: []byte("other"), Nonce: make([]byte, 12), Ciphertext: make([]byte, 32)})
	_, err := Decrypt(packet, keys)
	if !errors.Is(err, seal.ErrUnknownPeer) || Classify(err) != ClassRouting {
		t.Fatalf("expected routing error, got %v", err)
	}
}

func TestDecryptTruncatedPacket(t *testing.T) {
	testlog.Start(t)
	keys := keysFor(testingPeer, bytes.Repeat([]byte{1}, 32))
	_, err := Decrypt([]byte{11, 'e', 's', 'm'}, keys)
	if !errors.Is(err, frame.ErrTruncated) || Classify(err) != ClassParse {
		t.Fatalf("expected truncated parse error, got %v", err)
	}
}

func TestDecryptRejectsMismatchedBodyPeer(t *testing.T) {
	testlog.Start(t)
	key := bytes.Repeat([]byte{3}, 32)
	keys := keysFor(testingPeer, key)

	m := New(TypePing).SetPeerID([]byte("someone_else"))
	body, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	nonce, ct, err := seal.Seal(key, body)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	packet, _ := frame.Encode(frame.Frame{PeerID: testingPeer, Nonce: nonce, Ciphertext: ct})
	if _, err := Decrypt(packet, keys); !errors.Is(err, ErrPeerMismatch) {
		t.Fatalf("expected ErrPeerMismatch, got %v", err)
	}
}

func TestEmptyMessageJSON(t *testing.T) {
	testlog.Start(t)
	m := New(TypeConnect)
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := fmt.Sprintf(`{"id":"%s","type":"connect"}`, m.ID)
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}

	var back Message
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != m.ID || !data.IsEmpty(back.Data) || !metadata.IsEmpty(back.Metadata) || back.Errors != nil {
		t.Fatalf("unexpected message %s", &back)
	}
}

func TestMessageJSONWithPeerID(t *testing.T) {
	testlog.Start(t)
	m := New(TypeConnect).SetPeerID([]byte("some_server_id"))
	m.AttachSession(&Session{ResourceID: 1, RemoteAddr: "127.0.0.1:3003"})
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := fmt.Sprintf(`{"id":"%s","type":"connect","peer_id":[115,111,109,101,95,115,101,114,118,101,114,95,105,100]}`, m.ID)
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}

func TestMessageJSONKeyOrder(t *testing.T) {
	testlog.Start(t)
	m := New(TypeEvent).SetData(data.Test{Foo: "x"}).SetMetadata(metadata.Test{Foo: "y"}).AddError(ErrorCode, "1")
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := fmt.Sprintf(`{"id":"%s","type":"event","data":{"type":"test","content":{"foo":"x"}},"metadata":{"type":"test","content":{"foo":"y"}},"errors":[{"type":"code","content":"1"}]}`, m.ID)
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}

func TestMessageUnmarshalRejects(t *testing.T) {
	testlog.Start(t)
	id := uuid.New()
	tests := []struct {
		name  string
		body  string
		want  error
		class Class
	}{
		{name: "not json", body: `{"id":`, want: ErrInvalidMessage, class: ClassParse},
		{name: "missing id", body: `{"type":"ping"}`, want: ErrInvalidID, class: ClassShape},
		{name: "unknown type", body: fmt.Sprintf(`{"id":"%s","type":"launch"}`, id), want: ErrInvalidType, class: ClassShape},
		{name: "bad error kind", body: fmt.Sprintf(`{"id":"%s","type":"ping","errors":[{"type":"warning","content":"x"}]}`, id), want: ErrInvalidError, class: ClassShape},
		{name: "unknown data tag", body: fmt.Sprintf(`{"id":"%s","type":"ping","data":{"type":"nope"}}`, id), want: schema.ErrShape, class: ClassShape},
		{name: "peer id out of range", body: fmt.Sprintf(`{"id":"%s","type":"ping","peer_id":[256]}`, id), want: ErrInvalidMessage, class: ClassParse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m Message
			err := json.Unmarshal([]byte(tc.body), &m)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := Classify(err); got != tc.class {
				t.Fatalf("expected class %s, got %s", tc.class, got)
			}
		})
	}
}

func TestSortErrors(t *testing.T) {
	testlog.Start(t)
	m := New(TypeError).
		AddError(ErrorMessage, "b").
		AddError(ErrorCode, "z").
		AddError(ErrorMessage, "a")
	m.SortErrors()
	want := []Error{NewCodeError("z"), NewMessageError("a"), NewMessageError("b")}
	if !reflect.DeepEqual(m.Errors, want) {
		t.Fatalf("expected %v, got %v", want, m.Errors)
	}
}

func TestParseType(t *testing.T) {
	testlog.Start(t)
	for _, typ := range Types() {
		got, err := ParseType(` "` + string(typ) + `" `)
		if err != nil || got != typ {
			t.Fatalf("expected %s, got %s %v", typ, got, err)
		}
	}
	if _, err := ParseType("Connect"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestMessageString(t *testing.T) {
	testlog.Start(t)
	m := New(TypeQuery).SetPeerID([]byte("p")).SetData(data.Query{Name: "territories"})
	s := m.String()
	for _, part := range []string{"type=query", `peer="p"`, "data=query", "metadata=empty"} {
		if !strings.Contains(s, part) {
			t.Fatalf("expected %q in %s", part, s)
		}
	}
}

func TestClassify(t *testing.T) {
	testlog.Start(t)
	if Classify(nil) != ClassNone {
		t.Fatalf("expected none for nil")
	}
	if Classify(errors.New("boom")) != ClassInternal {
		t.Fatalf("expected internal for unknown errors")
	}
	if Classify(fmt.Errorf("wrapped: %w", data.ErrUnexpectedVariant)) != ClassShape {
		t.Fatalf("expected shape for variant mismatch")
	}
}

func ptr(s string) *string { return &s }
