// Package metadata holds the variants carried in a message's metadata slot.
package metadata

import (
	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/value"
)

type Metadata interface {
	isMetadata()
}

type Empty struct{}

type Test struct {
	Foo string
}

// Command identifies who issued a command and, optionally, who it targets.
type Command struct {
	Player Player
	Target *Player
}

type Player struct {
	DiscordID      *string
	DiscordMention *string
	DiscordName    *string
	SteamUID       string
}

func (Empty) isMetadata()   {}
func (Test) isMetadata()    {}
func (Command) isMetadata() {}

var testRecord = schema.NewRecord("test",
	schema.String("foo", func(v *Test) *string { return &v.Foo }),
)

var playerRecord = schema.NewRecord("player",
	schema.OptString("discord_id", func(v *Player) **string { return &v.DiscordID }),
	schema.OptString("discord_mention", func(v *Player) **string { return &v.DiscordMention }),
	schema.OptString("discord_name", func(v *Player) **string { return &v.DiscordName }),
	schema.String("steam_uid", func(v *Player) *string { return &v.SteamUID }),
)

var commandRecord = schema.NewRecord("command",
	schema.Nested("player", playerRecord, func(v *Command) *Player { return &v.Player }),
	schema.OptNested("target", playerRecord, func(v *Command) **Player { return &v.Target }),
)

var Union = schema.NewUnion[Metadata]("metadata", Empty{},
	schema.Case[Metadata]("test", testRecord),
	schema.Case[Metadata]("command", commandRecord),
)

var ErrUnexpectedVariant = schema.ErrUnexpectedVariant

func DecodeHost(raw string, f schema.Format) (Metadata, error) {
	tree, err := value.ParseHost(raw)
	if err != nil {
		return nil, err
	}
	return Decode(tree, f)
}

func Decode(tree value.Value, f schema.Format) (Metadata, error) {
	return Union.Decode(tree, f)
}

func EncodeHost(m Metadata, f schema.Format) (value.Value, error) {
	return Union.Encode(m, f)
}

func MarshalJSON(m Metadata) ([]byte, error) {
	tree, err := Union.Encode(m, schema.FormatObject)
	if err != nil {
		return nil, err
	}
	return tree.MarshalJSON()
}

func UnmarshalJSON(b []byte) (Metadata, error) {
	tree, err := value.ParseBytes(b)
	if err != nil {
		return nil, err
	}
	return Union.Decode(tree, schema.FormatObject)
}

func As[T Metadata](m Metadata) (T, error) {
	return schema.As[T](m)
}

func IsEmpty(m Metadata) bool { return Union.IsEmpty(m) }

func Tag(m Metadata) string {
	tag, err := Union.Tag(m)
	if err != nil {
		return "unknown"
	}
	return tag
}
