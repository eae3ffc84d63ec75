package packet

import "fmt"

// Opcode is the 16-bit wire identifier carried after the frame length.
type Opcode uint16

// Client→server opcodes. Values follow the 16042 client build's message
// table; gaps are opcodes the emulator has no handler for yet.
const (
	// Auth server (port 6600), plaintext.
	ClientHelloAuth Opcode = 0x0003

	// Realm server (port 23115).
	ClientHelloRealm       Opcode = 0x0100
	ClientRealmListRequest Opcode = 0x0102
	ClientRealmSelect      Opcode = 0x0104

	// World server (port 24000). Everything after the hello is encrypted
	// at the stream level, so no wrapper opcode exists for it.
	ClientHelloWorld      Opcode = 0x0200
	ClientCharacterList   Opcode = 0x0210
	ClientCharacterCreate Opcode = 0x0211
	ClientCharacterDelete Opcode = 0x0212
	ClientCharacterSelect Opcode = 0x0213
	ClientEnteredWorld    Opcode = 0x0216
	ClientEntityCommand   Opcode = 0x0220
	ClientChat            Opcode = 0x0230
	ClientWhisper         Opcode = 0x0232
	ClientCastSpell       Opcode = 0x0240
	ClientCancelCast      Opcode = 0x0241
	ClientNpcInteract     Opcode = 0x0250
	ClientLootCorpse      Opcode = 0x0252
	ClientKeepAlive       Opcode = 0x0260

	// Observed from the client without documented behavior. Registered as
	// named no-ops so they bypass the unknown-opcode strike counter.
	ClientUnknown0269 Opcode = 0x0269
	ClientUnknown07CC Opcode = 0x07cc
	ClientUnknown00DE Opcode = 0x00de
)

// Server→client opcodes.
const (
	ServerAuthAccepted Opcode = 0x0004
	ServerAuthDenied   Opcode = 0x0005

	ServerRealmInfo Opcode = 0x0101
	ServerRealmList Opcode = 0x0103
	ServerRealmJoin Opcode = 0x0105

	ServerHelloWorld      Opcode = 0x0201
	ServerCharacterList   Opcode = 0x0214
	ServerWorldEnter      Opcode = 0x0215
	ServerEntityCreate    Opcode = 0x0221
	ServerEntityDestroy   Opcode = 0x0222
	ServerEntityCommand   Opcode = 0x0223
	ServerEntityHealth    Opcode = 0x0224
	ServerEntityDeath     Opcode = 0x0225
	ServerChat            Opcode = 0x0231
	ServerChatResult      Opcode = 0x0233
	ServerSpellStart      Opcode = 0x0242
	ServerSpellGo         Opcode = 0x0243
	ServerSpellBuff       Opcode = 0x0244
	ServerSpellBuffRemove Opcode = 0x0245
	ServerSpellCastResult Opcode = 0x0246
	ServerLootResult      Opcode = 0x0253
	ServerThreatList      Opcode = 0x0254
	ServerXPGain          Opcode = 0x0255
	ServerLevelUp         Opcode = 0x0256
)

var opcodeNames = map[Opcode]string{
	ClientHelloAuth:        "ClientHelloAuth",
	ClientHelloRealm:       "ClientHelloRealm",
	ClientRealmListRequest: "ClientRealmListRequest",
	ClientRealmSelect:      "ClientRealmSelect",
	ClientHelloWorld:       "ClientHelloWorld",
	ClientCharacterList:    "ClientCharacterList",
	ClientCharacterCreate:  "ClientCharacterCreate",
	ClientCharacterDelete:  "ClientCharacterDelete",
	ClientCharacterSelect:  "ClientCharacterSelect",
	ClientEnteredWorld:     "ClientEnteredWorld",
	ClientEntityCommand:    "ClientEntityCommand",
	ClientChat:             "ClientChat",
	ClientWhisper:          "ClientWhisper",
	ClientCastSpell:        "ClientCastSpell",
	ClientCancelCast:       "ClientCancelCast",
	ClientNpcInteract:      "ClientNpcInteract",
	ClientLootCorpse:       "ClientLootCorpse",
	ClientKeepAlive:        "ClientKeepAlive",
	ClientUnknown0269:      "ClientUnknown0269",
	ClientUnknown07CC:      "ClientUnknown07CC",
	ClientUnknown00DE:      "ClientUnknown00DE",

	ServerAuthAccepted:    "ServerAuthAccepted",
	ServerAuthDenied:      "ServerAuthDenied",
	ServerRealmInfo:       "ServerRealmInfo",
	ServerRealmList:       "ServerRealmList",
	ServerRealmJoin:       "ServerRealmJoin",
	ServerHelloWorld:      "ServerHelloWorld",
	ServerCharacterList:   "ServerCharacterList",
	ServerWorldEnter:      "ServerWorldEnter",
	ServerEntityCreate:    "ServerEntityCreate",
	ServerEntityDestroy:   "ServerEntityDestroy",
	ServerEntityCommand:   "ServerEntityCommand",
	ServerEntityHealth:    "ServerEntityHealth",
	ServerEntityDeath:     "ServerEntityDeath",
	ServerChat:            "ServerChat",
	ServerChatResult:      "ServerChatResult",
	ServerSpellStart:      "ServerSpellStart",
	ServerSpellGo:         "ServerSpellGo",
	ServerSpellBuff:       "ServerSpellBuff",
	ServerSpellBuffRemove: "ServerSpellBuffRemove",
	ServerSpellCastResult: "ServerSpellCastResult",
	ServerLootResult:      "ServerLootResult",
	ServerThreatList:      "ServerThreatList",
	ServerXPGain:          "ServerXPGain",
	ServerLevelUp:         "ServerLevelUp",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%04X)", uint16(o))
}

// FromUint16 maps a wire value to a known opcode. ok is false for values
// the emulator has no name for.
func FromUint16(v uint16) (Opcode, bool) {
	_, ok := opcodeNames[Opcode(v)]
	return Opcode(v), ok
}

// ByName maps a symbolic name back to its opcode.
func ByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}
