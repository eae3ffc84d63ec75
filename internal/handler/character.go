package handler

import (
	"unicode"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/metrics"
	gonet "github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// maxCharactersPerAccount caps the roster shown at character select.
const maxCharactersPerAccount = 6

// handleHelloWorld upgrades a fresh world connection: the account ID
// arrives in plaintext, the stored session key arms the stream cipher,
// and everything after this packet rides it. A client without the right
// key produces undecodable frames and is cut by the codec.
func (d *Deps) handleHelloWorld(s *ClientSession, r *packet.Reader) {
	accountID := r.ReadUint64()
	if r.Err() != nil {
		s.Conn.Disconnect("malformed world hello")
		return
	}

	ctx, cancel := d.reqCtx()
	defer cancel()
	key, err := d.Accounts.LoadSessionKey(ctx, accountID)
	if err != nil {
		d.Log.Error("session key load failed", zap.Uint64("account", accountID), zap.Error(err))
		s.Conn.Disconnect("database error")
		return
	}
	if len(key) != gonet.SessionKeyLen {
		s.Conn.Disconnect("world hello without auth")
		return
	}

	s.AccountID = accountID
	s.Conn.EnableEncryption([gonet.SessionKeyLen]byte(key))
	s.Conn.SetState(packet.StateAuthenticated)
	s.send(packet.ServerHelloWorld, func(w *packet.Writer) {
		w.WriteUint32(d.Cfg.Realm.ID)
		w.WriteStringPacked(d.Cfg.Realm.Name)
	})
}

func (d *Deps) handleCharacterList(s *ClientSession, _ *packet.Reader) {
	ctx, cancel := d.reqCtx()
	defer cancel()
	chars, err := d.Characters.ListByAccount(ctx, s.AccountID)
	if err != nil {
		d.Log.Error("character list failed", zap.Uint64("account", s.AccountID), zap.Error(err))
		s.Conn.Disconnect("database error")
		return
	}
	d.sendCharacterList(s, chars)
}

func (d *Deps) sendCharacterList(s *ClientSession, chars []persist.CharacterRow) {
	s.send(packet.ServerCharacterList, func(w *packet.Writer) {
		w.WriteByte(byte(len(chars)))
		for _, c := range chars {
			w.WriteUint64(c.ID)
			w.WriteStringPacked(c.Name)
			w.WriteByte(byte(c.Faction))
			w.WriteByte(byte(c.Race))
			w.WriteByte(byte(c.Class))
			w.WriteByte(byte(c.Sex))
			w.WriteUint16(uint16(c.Level))
			w.WriteUint32(uint32(c.WorldID))
			w.WriteFloat32(c.X)
			w.WriteFloat32(c.Y)
			w.WriteFloat32(c.Z)
		}
	})
}

func validCharacterName(name string) bool {
	if len(name) < 3 || len(name) > 24 {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func (d *Deps) handleCharacterCreate(s *ClientSession, r *packet.Reader) {
	name, err := r.ReadStringPacked()
	faction := r.ReadByte()
	race := r.ReadByte()
	class := r.ReadByte()
	sex := r.ReadByte()
	if err != nil || r.Err() != nil {
		s.Conn.Disconnect("malformed character create")
		return
	}
	if !validCharacterName(name) || faction > 1 {
		d.handleCharacterList(s, nil) // unchanged roster doubles as rejection
		return
	}

	ctx, cancel := d.reqCtx()
	defer cancel()
	count, err := d.Characters.CountByAccount(ctx, s.AccountID)
	if err == nil && count >= maxCharactersPerAccount {
		d.handleCharacterList(s, nil)
		return
	}
	taken, err := d.Characters.NameExists(ctx, name)
	if err != nil || taken {
		d.handleCharacterList(s, nil)
		return
	}

	row := &persist.CharacterRow{
		AccountID: s.AccountID,
		Name:      name,
		Faction:   int16(faction),
		Race:      int16(race),
		Class:     int16(class),
		Sex:       int16(sex),
		Level:     1,
		WorldID:   int32(startWorldID),
		X:         startPosition.X,
		Y:         startPosition.Y,
		Z:         startPosition.Z,
		Health:    startHealth,
		MaxHealth: startHealth,
	}
	if err := d.Characters.Create(ctx, row); err != nil {
		d.Log.Error("character create failed", zap.String("name", name), zap.Error(err))
		d.handleCharacterList(s, nil)
		return
	}
	d.Log.Info("character created",
		zap.Uint64("account", s.AccountID),
		zap.String("name", name),
	)
	d.handleCharacterList(s, nil)
}

// New-character starting state.
const (
	startWorldID uint32 = 1
	startHealth  int32  = 100
)

var startPosition = world.Vec3{X: 0, Y: 0, Z: 0}

func (d *Deps) handleCharacterDelete(s *ClientSession, r *packet.Reader) {
	charID := r.ReadUint64()
	if r.Err() != nil {
		s.Conn.Disconnect("malformed character delete")
		return
	}
	ctx, cancel := d.reqCtx()
	defer cancel()
	if err := d.Characters.SoftDelete(ctx, charID, s.AccountID); err != nil {
		d.Log.Error("character delete failed", zap.Uint64("char", charID), zap.Error(err))
	}
	d.handleCharacterList(s, nil)
}

// handleCharacterSelect loads the character, registers the session and
// tells the client which world to load. The entity does not exist yet —
// ClientEnteredWorld finishes the job once the client's map is up.
func (d *Deps) handleCharacterSelect(s *ClientSession, r *packet.Reader) {
	charID := r.ReadUint64()
	if r.Err() != nil {
		s.Conn.Disconnect("malformed character select")
		return
	}

	ctx, cancel := d.reqCtx()
	defer cancel()
	row, err := d.Characters.Load(ctx, charID)
	if err != nil {
		d.Log.Error("character load failed", zap.Uint64("char", charID), zap.Error(err))
		s.Conn.Disconnect("database error")
		return
	}
	if row == nil || row.AccountID != s.AccountID {
		s.Conn.Disconnect("character not on account")
		return
	}

	guid := d.Manager.GenerateGUID(world.KindPlayer)
	sess := &world.Session{
		ID:            s.Conn.ID,
		AccountID:     s.AccountID,
		CharacterID:   row.ID,
		CharacterName: row.Name,
		EntityGUID:    guid,
		Faction:       world.PlayerFaction(row.Faction),
		ZoneID:        uint32(row.WorldID),
		InstanceID:    0,
		Conn:          s.Conn,
		Ignored:       make(map[string]bool),
	}
	if err := d.Manager.Register(sess); err != nil {
		// The name or the account is still held, usually by a ghost of a
		// dropped connection. Kick it and let this client retry.
		if old, ok := d.Manager.LookupByName(row.Name); ok && old.Conn != nil {
			old.Conn.Disconnect("replaced by new login")
		} else if old, ok := d.Manager.LookupByAccount(s.AccountID); ok && old.Conn != nil {
			old.Conn.Disconnect("replaced by new login")
		}
		s.Conn.Disconnect("already online")
		return
	}

	s.CharacterID = row.ID
	s.EntityGUID = guid
	s.Faction = world.PlayerFaction(row.Faction)
	s.ZoneKey = world.ZoneKey{WorldID: uint32(row.WorldID), InstanceID: 0}
	metrics.SessionsOnline.Set(float64(d.Manager.Online()))

	s.send(packet.ServerWorldEnter, func(w *packet.Writer) {
		w.WriteUint64(uint64(guid))
		w.WriteUint32(uint32(row.WorldID))
		w.WriteFloat32(row.X)
		w.WriteFloat32(row.Y)
		w.WriteFloat32(row.Z)
		w.WriteFloat32(row.Rotation)
	})
}

// handleEnteredWorld spawns the player entity into its zone once the
// client reports the map is loaded.
func (d *Deps) handleEnteredWorld(s *ClientSession, _ *packet.Reader) {
	if s.CharacterID == 0 {
		s.Conn.Disconnect("entered world without character")
		return
	}
	ctx, cancel := d.reqCtx()
	defer cancel()
	row, err := d.Characters.Load(ctx, s.CharacterID)
	if err != nil || row == nil {
		s.Conn.Disconnect("character vanished during load")
		return
	}

	z, ok := d.Zones.Get(s.ZoneKey)
	if !ok {
		s.Conn.Disconnect("unknown world")
		return
	}

	e := world.NewEntity(s.EntityGUID, world.KindPlayer,
		world.Vec3{X: row.X, Y: row.Y, Z: row.Z},
		uint32(row.MaxHealth), uint16(row.Level))
	e.Name = row.Name
	e.Rotation = row.Rotation
	e.Health = uint32(row.Health)
	if e.Health == 0 || e.Health > e.MaxHealth {
		e.Health = e.MaxHealth
	}
	e.SessionID = s.Conn.ID
	e.PlayerFaction = world.PlayerFaction(row.Faction)
	e.XP = uint64(row.XP)

	if !z.Post(func(z *zone.Instance) { z.AddPlayer(e) }) {
		s.Conn.Disconnect("zone unavailable")
		return
	}

	d.Manager.SetInWorld(s.Conn.ID, true)
	s.InWorld.Store(true)
	s.Conn.SetState(packet.StateInWorld)
	d.Log.Info("player entered world",
		zap.String("name", row.Name),
		zap.Uint32("world", s.ZoneKey.WorldID),
	)
}
