package handler

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/world"
	"github.com/nexusgo/server/internal/zone"
)

// Character writes retry through a capped doubling backoff. A logout
// snapshot that fails once is gone for good otherwise: the session has
// already left the registry, so the periodic sweep never rewrites it.
const (
	saveRetries     = 4
	saveBackoffBase = 250 * time.Millisecond
)

func saveBackoff() retry.Backoff {
	delay := saveBackoffBase
	return retry.WithMaxRetries(saveRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		d := delay
		delay *= 2
		return d, false
	}))
}

// saveBudget bounds one snapshot write including all of its retries.
func (d *Deps) saveBudget() time.Duration {
	return time.Duration(saveRetries+1) * d.Cfg.Game.RequestTimeout
}

// saveWithRetry drives one character write until it sticks or the backoff
// is exhausted.
func saveWithRetry(ctx context.Context, log *zap.Logger, charID uint64, b retry.Backoff, save func(context.Context) error) {
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := save(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Error("character save failed", zap.Uint64("char", charID), zap.Error(err))
	}
}

// saveEntity snapshots a player entity on the zone goroutine and writes
// it back off-thread so the simulation never waits on PostgreSQL.
func (d *Deps) saveEntity(charID uint64, worldID int32, e *world.Entity) {
	row := persist.CharacterRow{
		ID:        charID,
		WorldID:   worldID,
		Level:     int16(e.Level),
		XP:        int64(e.XP),
		X:         e.Position.X,
		Y:         e.Position.Y,
		Z:         e.Position.Z,
		Rotation:  e.Rotation,
		Health:    int32(e.Health),
		MaxHealth: int32(e.MaxHealth),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.saveBudget())
		defer cancel()
		saveWithRetry(ctx, d.Log, charID, saveBackoff(), func(ctx context.Context) error {
			return d.Characters.Save(ctx, &row)
		})
	}()
}

// SaveAll is the periodic save sweep: one command per zone snapshots its
// resident players. Registered with the tick scheduler at the configured
// save interval.
func (d *Deps) SaveAll(nowMS int64) {
	d.Zones.ForEach(func(z *zone.Instance) {
		z.Post(func(z *zone.Instance) {
			z.ForEachPlayer(func(e *world.Entity) {
				sess, ok := d.Manager.LookupByGUID(e.GUID)
				if !ok {
					return
				}
				row := persist.CharacterRow{
					ID:        sess.CharacterID,
					Level:     int16(e.Level),
					XP:        int64(e.XP),
					WorldID:   int32(sess.ZoneID),
					X:         e.Position.X,
					Y:         e.Position.Y,
					Z:         e.Position.Z,
					Rotation:  e.Rotation,
					Health:    int32(e.Health),
					MaxHealth: int32(e.MaxHealth),
				}
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), d.saveBudget())
					defer cancel()
					saveWithRetry(ctx, d.Log, row.ID, saveBackoff(), func(ctx context.Context) error {
						return d.Characters.Save(ctx, &row)
					})
				}()
			})
		})
	})
}

// CleanupDeletedCharacters sweeps characters whose delete grace period
// has expired. Registered as a slow periodic job.
func (d *Deps) CleanupDeletedCharacters(nowMS int64) {
	ctx, cancel := context.WithTimeout(context.Background(), d.Cfg.Game.RequestTimeout)
	defer cancel()
	n, err := d.Characters.CleanExpiredDeletions(ctx)
	if err != nil {
		d.Log.Error("deleted-character sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		d.Log.Info("purged deleted characters", zap.Int64("count", n))
	}
}
