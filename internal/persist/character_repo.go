package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// CharacterRow mirrors one characters record.
type CharacterRow struct {
	ID        uint64
	AccountID uint64
	Name      string
	Faction   int16 // 0 exile, 1 dominion
	Race      int16
	Class     int16
	Sex       int16
	Level     int16
	XP        int64
	WorldID   int32
	X         float32
	Y         float32
	Z         float32
	Rotation  float32
	Health    int32
	MaxHealth int32
	CreatedAt time.Time
	DeletedAt *time.Time
}

type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

const characterColumns = `id, account_id, name, faction, race, class, sex,
        level, xp, world_id, x, y, z, rotation, health, max_health,
        created_at, deleted_at`

func scanCharacter(row pgx.Row, c *CharacterRow) error {
	return row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Faction, &c.Race, &c.Class, &c.Sex,
		&c.Level, &c.XP, &c.WorldID, &c.X, &c.Y, &c.Z, &c.Rotation,
		&c.Health, &c.MaxHealth, &c.CreatedAt, &c.DeletedAt,
	)
}

// ListByAccount returns the account's living characters in creation order.
func (r *CharacterRepo) ListByAccount(ctx context.Context, accountID uint64) ([]CharacterRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+characterColumns+`
		 FROM characters
		 WHERE account_id = $1 AND deleted_at IS NULL
		 ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CharacterRow
	for rows.Next() {
		var c CharacterRow
		if err := scanCharacter(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Load fetches one character by ID, nil if absent or deleted.
func (r *CharacterRepo) Load(ctx context.Context, id uint64) (*CharacterRow, error) {
	c := &CharacterRow{}
	err := scanCharacter(r.db.Pool.QueryRow(ctx,
		`SELECT `+characterColumns+`
		 FROM characters WHERE id = $1 AND deleted_at IS NULL`, id,
	), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts the character and fills in its ID.
func (r *CharacterRepo) Create(ctx context.Context, c *CharacterRow) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (
			account_id, name, faction, race, class, sex,
			level, xp, world_id, x, y, z, rotation, health, max_health
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, created_at`,
		c.AccountID, c.Name, c.Faction, c.Race, c.Class, c.Sex,
		c.Level, c.XP, c.WorldID, c.X, c.Y, c.Z, c.Rotation,
		c.Health, c.MaxHealth,
	).Scan(&c.ID, &c.CreatedAt)
}

// NameExists reports whether a living or pending-delete character holds
// the name. Names stay reserved until the delete grace period expires.
func (r *CharacterRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM characters WHERE lower(name) = lower($1))`, name,
	).Scan(&exists)
	return exists, err
}

// CountByAccount counts the account's living characters.
func (r *CharacterRepo) CountByAccount(ctx context.Context, accountID uint64) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM characters WHERE account_id = $1 AND deleted_at IS NULL`,
		accountID,
	).Scan(&count)
	return count, err
}

// SoftDelete marks the character deleted with a 7-day grace period before
// the cleanup sweep removes the row for good.
func (r *CharacterRepo) SoftDelete(ctx context.Context, id, accountID uint64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET deleted_at = NOW() + INTERVAL '7 days'
		 WHERE id = $1 AND account_id = $2 AND deleted_at IS NULL`,
		id, accountID,
	)
	return err
}

// CleanExpiredDeletions hard-deletes characters whose grace period ran
// out. Returns how many rows went away.
func (r *CharacterRepo) CleanExpiredDeletions(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM characters WHERE deleted_at IS NOT NULL AND deleted_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Save writes back the mutable gameplay state. Called by the periodic
// save sweep and on logout.
func (r *CharacterRepo) Save(ctx context.Context, c *CharacterRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET
			level = $2, xp = $3, world_id = $4,
			x = $5, y = $6, z = $7, rotation = $8,
			health = $9, max_health = $10
		 WHERE id = $1`,
		c.ID, c.Level, c.XP, c.WorldID,
		c.X, c.Y, c.Z, c.Rotation, c.Health, c.MaxHealth,
	)
	return err
}
