package world

import (
	"errors"
	"strings"
	"sync"
)

// Sender is the weak handle a session keeps to its connection actor. It is
// a routing target, never a lifetime anchor: a closed connection turns
// sends into no-ops.
type Sender interface {
	SendPacket(opcode uint16, payload []byte)
	Disconnect(reason string)
}

// Session is the canonical record for one connected, authenticated client.
// The Manager owns the record; other goroutines receive value snapshots.
type Session struct {
	ID            uint64
	AccountID     uint64
	CharacterID   uint64
	CharacterName string
	EntityGUID    GUID
	Faction       PlayerFaction
	InWorld       bool
	ZoneID        uint32
	InstanceID    uint32
	Conn          Sender
	SequenceNum   uint32
	Ignored       map[string]bool // lowercased character names
}

// ZoneKey names one zone instance.
type ZoneKey struct {
	WorldID    uint32
	InstanceID uint32
}

var (
	ErrRecipientOffline    = errors.New("recipient offline")
	ErrRecipientFaction    = errors.New("recipient is on the opposing faction")
	ErrRecipientIgnoredYou = errors.New("recipient has you ignored")
	ErrNameTaken           = errors.New("character name already online")
	ErrAccountOnline       = errors.New("account already online")
)

// Manager is the process-wide session registry. Four indices are kept in
// lockstep under one mutex: register and deregister are atomic across all
// of them, so a session is either fully visible or fully gone.
//
// Lookups return value snapshots. Callers must not cache them across
// blocking operations — handles go stale on disconnect.
type Manager struct {
	mu        sync.RWMutex
	byID      map[uint64]*Session
	byAccount map[uint64]*Session
	byName    map[string]*Session // lowercased
	byGUID    map[GUID]*Session
	byZone    map[ZoneKey]map[uint64]struct{}

	guids *GUIDGenerator
}

func NewManager() *Manager {
	return &Manager{
		byID:      make(map[uint64]*Session),
		byAccount: make(map[uint64]*Session),
		byName:    make(map[string]*Session),
		byGUID:    make(map[GUID]*Session),
		byZone:    make(map[ZoneKey]map[uint64]struct{}),
		guids:     NewGUIDGenerator(),
	}
}

// GenerateGUID hands out a process-unique GUID tagged with kind.
func (m *Manager) GenerateGUID(kind EntityKind) GUID {
	return m.guids.Next(kind)
}

// Register inserts the session into every index. A session whose character
// name or account is already online is rejected; the caller decides
// whether to kick the old session first. Accepting a same-account session
// would let the second registration shadow the first in byAccount and
// leave the indices out of lockstep on deregister.
func (m *Manager) Register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nameKey := strings.ToLower(s.CharacterName)
	if _, taken := m.byName[nameKey]; taken {
		return ErrNameTaken
	}
	if _, online := m.byAccount[s.AccountID]; online {
		return ErrAccountOnline
	}

	m.byID[s.ID] = s
	m.byAccount[s.AccountID] = s
	m.byName[nameKey] = s
	m.byGUID[s.EntityGUID] = s

	zk := ZoneKey{s.ZoneID, s.InstanceID}
	members := m.byZone[zk]
	if members == nil {
		members = make(map[uint64]struct{})
		m.byZone[zk] = members
	}
	members[s.ID] = struct{}{}
	return nil
}

// Deregister removes the session from all indices atomically. Unknown IDs
// are a no-op so disconnect paths can be idempotent.
func (m *Manager) Deregister(sessionID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[sessionID]
	if !ok {
		return
	}
	delete(m.byID, sessionID)
	delete(m.byAccount, s.AccountID)
	delete(m.byName, strings.ToLower(s.CharacterName))
	delete(m.byGUID, s.EntityGUID)

	zk := ZoneKey{s.ZoneID, s.InstanceID}
	if members := m.byZone[zk]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(m.byZone, zk)
		}
	}
}

// MoveToZone reindexes the session under a new zone key.
func (m *Manager) MoveToZone(sessionID uint64, zone ZoneKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[sessionID]
	if !ok {
		return
	}
	old := ZoneKey{s.ZoneID, s.InstanceID}
	if members := m.byZone[old]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(m.byZone, old)
		}
	}
	s.ZoneID = zone.WorldID
	s.InstanceID = zone.InstanceID
	members := m.byZone[zone]
	if members == nil {
		members = make(map[uint64]struct{})
		m.byZone[zone] = members
	}
	members[sessionID] = struct{}{}
}

// SetInWorld flips the in-world flag once world entry completes.
func (m *Manager) SetInWorld(sessionID uint64, inWorld bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[sessionID]; ok {
		s.InWorld = inWorld
	}
}

func (m *Manager) snapshot(s *Session) (Session, bool) {
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// LookupByID returns a snapshot of the session record.
func (m *Manager) LookupByID(sessionID uint64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.byID[sessionID])
}

// LookupByAccount returns a snapshot by account ID.
func (m *Manager) LookupByAccount(accountID uint64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.byAccount[accountID])
}

// LookupByName returns a snapshot by character name, case-insensitive.
func (m *Manager) LookupByName(name string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.byName[strings.ToLower(name)])
}

// LookupByGUID returns a snapshot by entity GUID.
func (m *Manager) LookupByGUID(guid GUID) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.byGUID[guid])
}

// Online returns the number of registered sessions.
func (m *Manager) Online() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// ZoneMembers returns the session IDs registered under a zone key.
func (m *Manager) ZoneMembers(zone ZoneKey) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.byZone[zone]
	out := make([]uint64, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// BroadcastToZone delivers one packet to every session in the zone.
func (m *Manager) BroadcastToZone(zone ZoneKey, opcode uint16, payload []byte) {
	m.mu.RLock()
	conns := make([]Sender, 0, 16)
	for id := range m.byZone[zone] {
		if s := m.byID[id]; s != nil && s.Conn != nil {
			conns = append(conns, s.Conn)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.SendPacket(opcode, payload)
	}
}

// BroadcastAll delivers one packet to every registered session. System
// announcements ride this; everything zone-scoped goes through
// BroadcastToZone instead.
func (m *Manager) BroadcastAll(opcode uint16, payload []byte) {
	m.mu.RLock()
	conns := make([]Sender, 0, len(m.byID))
	for _, s := range m.byID {
		if s.Conn != nil {
			conns = append(conns, s.Conn)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.SendPacket(opcode, payload)
	}
}

// RouteWhisper resolves the target by name and applies whisper policy:
// offline targets, opposing-faction targets, and targets that have the
// sender ignored all reject the message. On success it returns a snapshot
// of the recipient so the caller can build the delivery packet.
func (m *Manager) RouteWhisper(from Session, targetName string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	target := m.byName[strings.ToLower(targetName)]
	if target == nil || !target.InWorld {
		return Session{}, ErrRecipientOffline
	}
	if target.Faction != from.Faction {
		return Session{}, ErrRecipientFaction
	}
	if target.Ignored[strings.ToLower(from.CharacterName)] {
		return Session{}, ErrRecipientIgnoredYou
	}
	return *target, nil
}
