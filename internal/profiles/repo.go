package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("strategy profile not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, userID, profileID string) (*Profile, error) {
	const q = `
select id::text, user_id::text, name, audience, goal, tone, framework, density, image_frequency, created_at, updated_at
from strategy_profiles
where id = $1::uuid and user_id = $2::uuid
`
	var p Profile
	err := r.db.QueryRow(ctx, q, profileID, userID).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Audience, &p.Goal, &p.Tone,
		&p.Framework, &p.Density, &p.ImageFrequency, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Create(ctx context.Context, p *Profile) error {
	const q = `
insert into strategy_profiles (user_id, name, audience, goal, tone, framework, density, image_frequency)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
returning id::text, created_at, updated_at
`
	return r.db.QueryRow(ctx, q, p.UserID, p.Name, p.Audience, p.Goal, p.Tone,
		p.Framework, p.Density, p.ImageFrequency).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repo) List(ctx context.Context, userID string) ([]Profile, error) {
	const q = `
select id::text, user_id::text, name, audience, goal, tone, framework, density, image_frequency, created_at, updated_at
from strategy_profiles
where user_id = $1::uuid
order by created_at desc
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Profile, 0, 8)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Audience, &p.Goal, &p.Tone,
			&p.Framework, &p.Density, &p.ImageFrequency, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
