package handler

import (
	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/auth"
	"github.com/nexusgo/server/internal/net/packet"
)

// requiredBuild is the client build this server speaks. Everything else
// is denied before credentials are even looked at.
const requiredBuild uint32 = 16042

// Auth deny codes shown by the client's login dialog.
const (
	denyAccountNotFound uint8 = 16
	denyBuildMismatch   uint8 = 19
	denyBanned          uint8 = 21
	denyBadProof        uint8 = 22
)

// Auth handshake stages inside ClientHelloAuth / ServerAuthAccepted.
const (
	authStageIdentity uint8 = 0 // client: build + email, server: salt + B
	authStageProof    uint8 = 1 // client: A + M1, server: M2
)

// handleHelloAuth drives the two-step SRP login on the auth listener. The
// first packet identifies the account and gets the challenge back; the
// second carries the proof. Deny codes match the client's dialog table.
func (d *Deps) handleHelloAuth(s *ClientSession, r *packet.Reader) {
	stage := r.ReadByte()
	switch stage {
	case authStageIdentity:
		d.authIdentity(s, r)
	case authStageProof:
		d.authProof(s, r)
	default:
		d.deny(s, denyBadProof)
	}
}

func (d *Deps) authIdentity(s *ClientSession, r *packet.Reader) {
	build := r.ReadUint32()
	email, err := r.ReadStringPacked()
	if err != nil || r.Err() != nil {
		s.Conn.Disconnect("malformed auth hello")
		return
	}
	if build != requiredBuild {
		d.Log.Info("auth denied, build mismatch",
			zap.Uint32("got", build), zap.Uint32("want", requiredBuild))
		d.deny(s, denyBuildMismatch)
		return
	}

	ctx, cancel := d.reqCtx()
	defer cancel()
	account, err := d.Accounts.Load(ctx, email)
	if err != nil {
		d.Log.Error("account load failed", zap.String("email", email), zap.Error(err))
		s.Conn.Disconnect("database error")
		return
	}
	if account == nil {
		d.deny(s, denyAccountNotFound)
		return
	}
	if account.Banned {
		d.deny(s, denyBanned)
		return
	}

	srp, err := auth.NewServerSession(account.Salt, account.Verifier)
	if err != nil {
		s.Conn.Disconnect("srp setup failed")
		return
	}
	s.AccountID = account.ID
	s.AccountEmail = account.Email
	s.SRP = srp

	s.send(packet.ServerAuthAccepted, func(w *packet.Writer) {
		w.WriteByte(authStageIdentity)
		writeBlob(w, srp.Salt())
		writeBlob(w, srp.PublicB())
	})
	s.Conn.SetState(packet.StateAuthenticated)
}

func (d *Deps) authProof(s *ClientSession, r *packet.Reader) {
	if s.SRP == nil {
		s.Conn.Disconnect("proof before challenge")
		return
	}
	clientA := readBlob(r)
	clientM1 := readBlob(r)
	if r.Err() != nil {
		s.Conn.Disconnect("malformed auth proof")
		return
	}

	m2, err := s.SRP.Verify(clientA, clientM1)
	ctx, cancel := d.reqCtx()
	defer cancel()
	if err != nil {
		_ = d.Accounts.RecordLogin(ctx, s.AccountID, s.Conn.RemoteAddr(), false)
		d.deny(s, denyBadProof)
		return
	}

	// The wire cipher key for the world connection is the low half of the
	// SRP shared key: both sides derive it, nothing secret crosses the
	// wire.
	sessionKey := s.SRP.SessionKey()[:16]
	if err := d.Accounts.StoreSessionKey(ctx, s.AccountID, sessionKey); err != nil {
		d.Log.Error("session key store failed", zap.Uint64("account", s.AccountID), zap.Error(err))
		s.Conn.Disconnect("database error")
		return
	}
	_ = d.Accounts.RecordLogin(ctx, s.AccountID, s.Conn.RemoteAddr(), true)
	s.SRP = nil

	s.send(packet.ServerAuthAccepted, func(w *packet.Writer) {
		w.WriteByte(authStageProof)
		writeBlob(w, m2)
		w.WriteUint64(s.AccountID)
	})
	d.Log.Info("account authenticated",
		zap.Uint64("account", s.AccountID),
		zap.String("email", s.AccountEmail),
	)
}

func (d *Deps) deny(s *ClientSession, code uint8) {
	s.send(packet.ServerAuthDenied, func(w *packet.Writer) {
		w.WriteByte(code)
	})
	s.Conn.Disconnect("auth denied")
}

// writeBlob emits a byte-length-prefixed binary field.
func writeBlob(w *packet.Writer, b []byte) {
	w.WriteUint16(uint16(len(b)))
	w.WriteBytes(b)
}

func readBlob(r *packet.Reader) []byte {
	n := int(r.ReadUint16())
	if n == 0 || n > 512 {
		return nil
	}
	return r.ReadBytes(n)
}
