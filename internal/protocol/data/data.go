// Package data holds the payload variants carried in a message's data slot.
package data

import (
	"time"

	"github.com/danmuck/esmwire/internal/protocol/schema"
	"github.com/danmuck/esmwire/internal/protocol/value"
)

// Data is the closed set of payload variants. Numeric fields that must not
// lose precision are decimal strings.
type Data interface {
	isData()
}

type Empty struct{}

type Test struct {
	Foo string
}

type Init struct {
	ExtensionVersion  string
	PricePerObject    string
	ServerName        string
	ServerStartTime   time.Time
	TerritoryData     string
	TerritoryLifetime string
	VGEnabled         bool
	VGMaxSizes        string
}

type PostInit struct {
	ExtDBPath                        string
	GamblingModifier                 string
	GamblingPayout                   string
	GamblingRandomizerMax            string
	GamblingRandomizerMid            string
	GamblingRandomizerMin            string
	GamblingWinChance                string
	LoggingAddPlayerToTerritory      bool
	LoggingChannelID                 string
	LoggingDemotePlayer              bool
	LoggingExec                      bool
	LoggingGamble                    bool
	LoggingModifyPlayer              bool
	LoggingPayTerritory              bool
	LoggingPromotePlayer             bool
	LoggingRemovePlayerFromTerritory bool
	LoggingReward                    bool
	LoggingTransfer                  bool
	LoggingUpgradeTerritory          bool
	MaxPaymentCount                  string
	TerritoryAdmins                  []string
	TerritoryPaymentTax              string
	TerritoryUpgradeTax              string
}

// Query names a stored database query and its arguments.
type Query struct {
	Arguments map[string]string
	Name      string
}

type QueryResult struct {
	Results []string
}

type SendToChannel struct {
	ID      string
	Content string
}

// Reward grants items, currency and vehicles. Every member is optional.
type Reward struct {
	Items         map[string]string
	LockerPoptabs *string
	PlayerPoptabs *string
	Respect       *string
	Vehicles      []map[string]string
}

type Sqf struct {
	ExecuteOn string
	Code      string
}

type SqfResult struct {
	Result *string
}

func (Empty) isData()         {}
func (Test) isData()          {}
func (Init) isData()          {}
func (PostInit) isData()      {}
func (Query) isData()         {}
func (QueryResult) isData()   {}
func (SendToChannel) isData() {}
func (Reward) isData()        {}
func (Sqf) isData()           {}
func (SqfResult) isData()     {}

var testRecord = schema.NewRecord("test",
	schema.String("foo", func(v *Test) *string { return &v.Foo }),
)

var initRecord = schema.NewRecord("init",
	schema.String("extension_version", func(v *Init) *string { return &v.ExtensionVersion }),
	schema.NumberString("price_per_object", func(v *Init) *string { return &v.PricePerObject }),
	schema.String("server_name", func(v *Init) *string { return &v.ServerName }),
	schema.Time("server_start_time", func(v *Init) *time.Time { return &v.ServerStartTime }),
	schema.String("territory_data", func(v *Init) *string { return &v.TerritoryData }),
	schema.NumberString("territory_lifetime", func(v *Init) *string { return &v.TerritoryLifetime }),
	schema.Bool("vg_enabled", func(v *Init) *bool { return &v.VGEnabled }),
	schema.String("vg_max_sizes", func(v *Init) *string { return &v.VGMaxSizes }),
)

var postInitRecord = schema.NewRecord("post_init",
	schema.String("extdb_path", func(v *PostInit) *string { return &v.ExtDBPath }),
	schema.NumberString("gambling_modifier", func(v *PostInit) *string { return &v.GamblingModifier }),
	schema.NumberString("gambling_payout", func(v *PostInit) *string { return &v.GamblingPayout }),
	schema.NumberString("gambling_randomizer_max", func(v *PostInit) *string { return &v.GamblingRandomizerMax }),
	schema.NumberString("gambling_randomizer_mid", func(v *PostInit) *string { return &v.GamblingRandomizerMid }),
	schema.NumberString("gambling_randomizer_min", func(v *PostInit) *string { return &v.GamblingRandomizerMin }),
	schema.NumberString("gambling_win_chance", func(v *PostInit) *string { return &v.GamblingWinChance }),
	schema.Bool("logging_add_player_to_territory", func(v *PostInit) *bool { return &v.LoggingAddPlayerToTerritory }),
	schema.String("logging_channel_id", func(v *PostInit) *string { return &v.LoggingChannelID }),
	schema.Bool("logging_demote_player", func(v *PostInit) *bool { return &v.LoggingDemotePlayer }),
	schema.Bool("logging_exec", func(v *PostInit) *bool { return &v.LoggingExec }),
	schema.Bool("logging_gamble", func(v *PostInit) *bool { return &v.LoggingGamble }),
	schema.Bool("logging_modify_player", func(v *PostInit) *bool { return &v.LoggingModifyPlayer }),
	schema.Bool("logging_pay_territory", func(v *PostInit) *bool { return &v.LoggingPayTerritory }),
	schema.Bool("logging_promote_player", func(v *PostInit) *bool { return &v.LoggingPromotePlayer }),
	schema.Bool("logging_remove_player_from_territory", func(v *PostInit) *bool { return &v.LoggingRemovePlayerFromTerritory }),
	schema.Bool("logging_reward", func(v *PostInit) *bool { return &v.LoggingReward }),
	schema.Bool("logging_transfer", func(v *PostInit) *bool { return &v.LoggingTransfer }),
	schema.Bool("logging_upgrade_territory", func(v *PostInit) *bool { return &v.LoggingUpgradeTerritory }),
	schema.NumberString("max_payment_count", func(v *PostInit) *string { return &v.MaxPaymentCount }),
	schema.Strings("territory_admins", func(v *PostInit) *[]string { return &v.TerritoryAdmins }),
	schema.NumberString("territory_payment_tax", func(v *PostInit) *string { return &v.TerritoryPaymentTax }),
	schema.NumberString("territory_upgrade_tax", func(v *PostInit) *string { return &v.TerritoryUpgradeTax }),
)

var queryRecord = schema.NewRecord("query",
	schema.StringMap("arguments", func(v *Query) *map[string]string { return &v.Arguments }),
	schema.String("name", func(v *Query) *string { return &v.Name }),
)

var queryResultRecord = schema.NewRecord("query_result",
	schema.Strings("results", func(v *QueryResult) *[]string { return &v.Results }),
)

var sendToChannelRecord = schema.NewRecord("send_to_channel",
	schema.String("id", func(v *SendToChannel) *string { return &v.ID }),
	schema.String("content", func(v *SendToChannel) *string { return &v.Content }),
)

var rewardRecord = schema.NewRecord("reward",
	schema.OptNumberMap("items", func(v *Reward) *map[string]string { return &v.Items }),
	schema.OptNumberString("locker_poptabs", func(v *Reward) **string { return &v.LockerPoptabs }),
	schema.OptNumberString("player_poptabs", func(v *Reward) **string { return &v.PlayerPoptabs }),
	schema.OptNumberString("respect", func(v *Reward) **string { return &v.Respect }),
	schema.OptMapList("vehicles", func(v *Reward) *[]map[string]string { return &v.Vehicles }),
)

var sqfRecord = schema.NewRecord("sqf",
	schema.String("execute_on", func(v *Sqf) *string { return &v.ExecuteOn }),
	schema.String("code", func(v *Sqf) *string { return &v.Code }),
)

var sqfResultRecord = schema.NewRecord("sqf_result",
	schema.OptString("result", func(v *SqfResult) **string { return &v.Result }),
)

// Union declares every variant and its tag.
var Union = schema.NewUnion[Data]("data", Empty{},
	schema.Case[Data]("test", testRecord),
	schema.Case[Data]("init", initRecord),
	schema.Case[Data]("post_init", postInitRecord),
	schema.Case[Data]("query", queryRecord),
	schema.Case[Data]("query_result", queryResultRecord),
	schema.Case[Data]("send_to_channel", sendToChannelRecord),
	schema.Case[Data]("reward", rewardRecord),
	schema.Case[Data]("sqf", sqfRecord),
	schema.Case[Data]("sqf_result", sqfResultRecord),
)

// ErrUnexpectedVariant is returned by As on a variant mismatch.
var ErrUnexpectedVariant = schema.ErrUnexpectedVariant

// DecodeHost decodes raw host text.
func DecodeHost(raw string, f schema.Format) (Data, error) {
	tree, err := value.ParseHost(raw)
	if err != nil {
		return nil, err
	}
	return Decode(tree, f)
}

func Decode(tree value.Value, f schema.Format) (Data, error) {
	return Union.Decode(tree, f)
}

// EncodeHost encodes d as a tree in the host grammar; render it with value.Render.
func EncodeHost(d Data, f schema.Format) (value.Value, error) {
	return Union.Encode(d, f)
}

// MarshalJSON writes d as a {"type", "content"} object.
func MarshalJSON(d Data) ([]byte, error) {
	tree, err := Union.Encode(d, schema.FormatObject)
	if err != nil {
		return nil, err
	}
	return tree.MarshalJSON()
}

func UnmarshalJSON(b []byte) (Data, error) {
	tree, err := value.ParseBytes(b)
	if err != nil {
		return nil, err
	}
	return Union.Decode(tree, schema.FormatObject)
}

// As returns d as variant T or ErrUnexpectedVariant.
func As[T Data](d Data) (T, error) {
	return schema.As[T](d)
}

func IsEmpty(d Data) bool { return Union.IsEmpty(d) }

// Tag returns the wire tag of d.
func Tag(d Data) string {
	tag, err := Union.Tag(d)
	if err != nil {
		return "unknown"
	}
	return tag
}
