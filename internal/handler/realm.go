package handler

import (
	"crypto/subtle"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net/packet"
)

// handleHelloRealm authenticates the realm connection: the client proves
// it finished SRP on the auth server by presenting the derived session
// key, which the auth step stored against the account.
func (d *Deps) handleHelloRealm(s *ClientSession, r *packet.Reader) {
	accountID := r.ReadUint64()
	presented := readBlob(r)
	if r.Err() != nil {
		s.Conn.Disconnect("malformed realm hello")
		return
	}

	ctx, cancel := d.reqCtx()
	defer cancel()
	stored, err := d.Accounts.LoadSessionKey(ctx, accountID)
	if err != nil {
		d.Log.Error("session key load failed", zap.Uint64("account", accountID), zap.Error(err))
		s.Conn.Disconnect("database error")
		return
	}
	if len(stored) == 0 || subtle.ConstantTimeCompare(stored, presented) != 1 {
		s.Conn.Disconnect("realm hello rejected")
		return
	}

	s.AccountID = accountID
	s.Conn.SetState(packet.StateAuthenticated)
	s.send(packet.ServerRealmInfo, func(w *packet.Writer) {
		w.WriteUint32(d.Cfg.Realm.ID)
		w.WriteStringPacked(d.Cfg.Realm.Name)
	})
}

// handleRealmList sends the realm roster. A single-realm deployment still
// answers with the list shape so the client's realm picker works.
func (d *Deps) handleRealmList(s *ClientSession, _ *packet.Reader) {
	s.send(packet.ServerRealmList, func(w *packet.Writer) {
		w.WriteByte(1) // realm count
		w.WriteUint32(d.Cfg.Realm.ID)
		w.WriteStringPacked(d.Cfg.Realm.Name)
		w.WriteStringASCII(d.Cfg.Realm.PublicWorldAddress)
		w.WriteUint32(uint32(d.Manager.Online()))
	})
}

// handleRealmSelect hands the client off to the world server.
func (d *Deps) handleRealmSelect(s *ClientSession, r *packet.Reader) {
	realmID := r.ReadUint32()
	if r.Err() != nil || realmID != d.Cfg.Realm.ID {
		s.Conn.Disconnect("unknown realm selected")
		return
	}
	s.send(packet.ServerRealmJoin, func(w *packet.Writer) {
		w.WriteUint32(d.Cfg.Realm.ID)
		w.WriteStringASCII(d.Cfg.Realm.PublicWorldAddress)
		w.WriteUint64(s.AccountID)
	})
}
