package decks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, d *Deck) error {
	const q = `
insert into decks (user_id, title, topic, status, profile_id, theme_id, tier, auto_approve)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
returning id::text, created_at, updated_at
`
	if d.Status == "" {
		d.Status = StatusEmpty
	}
	return r.db.QueryRow(ctx, q, d.UserID, d.Title, d.Topic, string(d.Status),
		d.ProfileID, d.ThemeID, d.Tier, d.AutoApprove).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *Repo) Get(ctx context.Context, userID, deckID string) (*Deck, error) {
	const q = `
select id::text, user_id::text, title, topic, status,
  case when profile_id is null then null else profile_id::text end,
  coalesce(theme_id, ''), tier, auto_approve, created_at, updated_at
from decks
where id = $1::uuid and user_id = $2::uuid
`
	var d Deck
	var status string
	err := r.db.QueryRow(ctx, q, deckID, userID).Scan(&d.ID, &d.UserID, &d.Title, &d.Topic,
		&status, &d.ProfileID, &d.ThemeID, &d.Tier, &d.AutoApprove, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDeckNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

func (r *Repo) List(ctx context.Context, userID string) ([]Deck, error) {
	const q = `
select id::text, user_id::text, title, topic, status,
  case when profile_id is null then null else profile_id::text end,
  coalesce(theme_id, ''), tier, auto_approve, created_at, updated_at
from decks
where user_id = $1::uuid
order by created_at desc
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Deck, 0, 16)
	for rows.Next() {
		var d Deck
		var status string
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Topic, &status, &d.ProfileID,
			&d.ThemeID, &d.Tier, &d.AutoApprove, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Status = Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, deckID string, status Status) error {
	const q = `update decks set status = $2, updated_at = now() where id = $1::uuid`
	ct, err := r.db.Exec(ctx, q, deckID, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrDeckNotFound
	}
	return nil
}

func (r *Repo) UpdateTitle(ctx context.Context, deckID, title string) error {
	const q = `update decks set title = $2, updated_at = now() where id = $1::uuid`
	_, err := r.db.Exec(ctx, q, deckID, title)
	return err
}

func (r *Repo) UpdateTheme(ctx context.Context, deckID, themeID string) error {
	const q = `update decks set theme_id = $2, updated_at = now() where id = $1::uuid`
	_, err := r.db.Exec(ctx, q, deckID, themeID)
	return err
}

func (r *Repo) SetAutoApprove(ctx context.Context, deckID string, on bool) error {
	const q = `update decks set auto_approve = $2, updated_at = now() where id = $1::uuid`
	_, err := r.db.Exec(ctx, q, deckID, on)
	return err
}

// DeleteSlides clears a deck before regeneration; slides are replaced
// wholesale, never patched across runs.
func (r *Repo) DeleteSlides(ctx context.Context, deckID string) error {
	const q = `delete from slides where deck_id = $1::uuid`
	_, err := r.db.Exec(ctx, q, deckID)
	return err
}

func (r *Repo) InsertSlide(ctx context.Context, s *Slide) error {
	const q = `
insert into slides (deck_id, number, title, body, speaker_notes, image_prompt, content_hash, section, slide_type)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
returning id::text, created_at, updated_at
`
	return r.db.QueryRow(ctx, q, s.DeckID, s.Number, s.Title, s.Body, s.SpeakerNotes,
		s.ImagePrompt, s.ContentHash, s.Section, s.SlideType).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// InsertSlideAt renumbers slides at and after position, then inserts the new
// slide there, keeping 1..N contiguous. Used for accepted reviewer splits.
func (r *Repo) InsertSlideAt(ctx context.Context, s *Slide, position int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert-at tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const shift = `
update slides set number = number + 1, updated_at = now()
where deck_id = $1::uuid and number >= $2
`
	if _, err := tx.Exec(ctx, shift, s.DeckID, position); err != nil {
		return fmt.Errorf("shift slides: %w", err)
	}

	s.Number = position
	const ins = `
insert into slides (deck_id, number, title, body, speaker_notes, image_prompt, content_hash, section, slide_type)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
returning id::text, created_at, updated_at
`
	if err := tx.QueryRow(ctx, ins, s.DeckID, s.Number, s.Title, s.Body, s.SpeakerNotes,
		s.ImagePrompt, s.ContentHash, s.Section, s.SlideType).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("insert slide: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) UpdateSlideContent(ctx context.Context, slideID, title, body, notes, hash string) error {
	const q = `
update slides
set title = $2, body = $3, speaker_notes = $4, content_hash = $5, updated_at = now()
where id = $1::uuid
`
	ct, err := r.db.Exec(ctx, q, slideID, title, body, notes, hash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSlideNotFound
	}
	return nil
}

// UpdateSlideImage records the rendered image URL for a slide once the
// background image job finishes.
func (r *Repo) UpdateSlideImage(ctx context.Context, slideID, imageURL string) error {
	const q = `update slides set image_url = $2, updated_at = now() where id = $1::uuid`
	ct, err := r.db.Exec(ctx, q, slideID, imageURL)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSlideNotFound
	}
	return nil
}

func (r *Repo) ListSlides(ctx context.Context, deckID string) ([]Slide, error) {
	const q = `
select id::text, deck_id::text, number, title, body, speaker_notes, image_prompt, coalesce(image_url, ''), content_hash, section, slide_type, created_at, updated_at
from slides
where deck_id = $1::uuid
order by number asc
`
	rows, err := r.db.Query(ctx, q, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Slide, 0, 16)
	for rows.Next() {
		var s Slide
		if err := rows.Scan(&s.ID, &s.DeckID, &s.Number, &s.Title, &s.Body, &s.SpeakerNotes,
			&s.ImagePrompt, &s.ImageURL, &s.ContentHash, &s.Section, &s.SlideType, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) CountSlides(ctx context.Context, deckID string) (int, error) {
	const q = `select count(*) from slides where deck_id = $1::uuid`
	var n int
	if err := r.db.QueryRow(ctx, q, deckID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) InsertMessage(ctx context.Context, deckID, role, content, kind string, payload any) (*Message, error) {
	var raw []byte
	var err error
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal message payload: %w", err)
		}
	} else {
		raw = []byte(`{}`)
	}

	const q = `
insert into deck_messages (deck_id, role, content, kind, payload)
values ($1::uuid, $2, $3, $4, $5::jsonb)
returning id::text, created_at
`
	m := &Message{DeckID: deckID, Role: role, Content: content, Kind: kind, Payload: raw}
	if err := r.db.QueryRow(ctx, q, deckID, role, content, kind, string(raw)).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// LatestPayload returns the newest structured payload of the given kind for
// the deck, with its timestamp.
func (r *Repo) LatestPayload(ctx context.Context, deckID, kind string) (json.RawMessage, time.Time, error) {
	const q = `
select payload::text, created_at
from deck_messages
where deck_id = $1::uuid and kind = $2
order by created_at desc
limit 1
`
	var payload string
	var at time.Time
	err := r.db.QueryRow(ctx, q, deckID, kind).Scan(&payload, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, pgx.ErrNoRows
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return json.RawMessage(payload), at, nil
}

func (r *Repo) CountUserMessages(ctx context.Context, deckID string) (int, error) {
	const q = `select count(*) from deck_messages where deck_id = $1::uuid and role = 'user'`
	var n int
	if err := r.db.QueryRow(ctx, q, deckID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) ListMessages(ctx context.Context, deckID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
select id::text, deck_id::text, role, content, coalesce(kind, ''), payload, created_at
from deck_messages
where deck_id = $1::uuid
order by created_at desc
limit $2
`
	rows, err := r.db.Query(ctx, q, deckID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.DeckID, &m.Role, &m.Content, &m.Kind, &m.Payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
