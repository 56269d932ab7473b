package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const planetColumns = `id, name, about, scheme, key_name, key_id, ipns, last_published_cid, last_published_at,
	ens_name, ens_cid, feed_host, feed_url, feed_checksum, created_at, updated_at`

// planetRow is the flat column layout of the planets table.
type planetRow struct {
	ID               uuid.UUID
	Name             string
	About            string
	Scheme           string
	KeyName          *string
	KeyID            *string
	IPNS             *string
	LastPublishedCID *string
	LastPublishedAt  *time.Time
	ENSName          *string
	ENSCID           *string
	FeedHost         *string
	FeedURL          *string
	FeedChecksum     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r *planetRow) args() []any {
	return []any{
		r.ID, r.Name, r.About, r.Scheme,
		r.KeyName, r.KeyID, r.IPNS, r.LastPublishedCID, r.LastPublishedAt,
		r.ENSName, r.ENSCID,
		r.FeedHost, r.FeedURL, r.FeedChecksum,
		r.CreatedAt, r.UpdatedAt,
	}
}

func toPlanetRow(p *domain.Planet) planetRow {
	r := planetRow{
		ID:        p.ID,
		Name:      p.Name,
		About:     p.About,
		Scheme:    string(p.Scheme),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if o := p.Owned; o != nil {
		r.KeyName = nullable(o.KeyName)
		r.KeyID = nullable(o.KeyID)
		r.IPNS = nullable(o.IPNS)
		r.LastPublishedCID = nullable(o.LastPublishedCID)
		r.LastPublishedAt = o.LastPublishedAt
	}
	if e := p.ENS; e != nil {
		r.ENSName = nullable(e.Name)
		r.ENSCID = nullable(e.CID)
	}
	if f := p.Feed; f != nil {
		r.FeedHost = nullable(f.Host)
		r.FeedURL = nullable(f.FeedURL)
		r.FeedChecksum = nullable(f.Checksum)
	}
	return r
}

func (r *planetRow) toDomain() (*domain.Planet, error) {
	scheme, err := domain.ParseScheme(r.Scheme)
	if err != nil {
		return nil, err
	}
	p := &domain.Planet{
		ID:        r.ID,
		Name:      r.Name,
		About:     r.About,
		Scheme:    scheme,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	switch scheme {
	case domain.SchemeOwned:
		p.Owned = &domain.OwnedFields{
			KeyName:          deref(r.KeyName),
			KeyID:            deref(r.KeyID),
			IPNS:             deref(r.IPNS),
			LastPublishedCID: deref(r.LastPublishedCID),
			LastPublishedAt:  r.LastPublishedAt,
		}
	case domain.SchemeENS, domain.SchemeDNSLink:
		p.ENS = &domain.ENSFields{Name: deref(r.ENSName), CID: deref(r.ENSCID)}
	case domain.SchemeHTTP:
		p.Feed = &domain.FeedFields{
			Host:     deref(r.FeedHost),
			FeedURL:  deref(r.FeedURL),
			Checksum: deref(r.FeedChecksum),
		}
	}
	return p, nil
}

func scanPlanet(row pgx.Row) (*domain.Planet, error) {
	var r planetRow
	if err := row.Scan(
		&r.ID, &r.Name, &r.About, &r.Scheme,
		&r.KeyName, &r.KeyID, &r.IPNS, &r.LastPublishedCID, &r.LastPublishedAt,
		&r.ENSName, &r.ENSCID,
		&r.FeedHost, &r.FeedURL, &r.FeedChecksum,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return r.toDomain()
}

func (s *Storer) CreatePlanet(ctx context.Context, planet *domain.Planet) error {
	if err := planet.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid planet", err)
	}

	r := toPlanetRow(planet)
	_, err := s.db.Exec(ctx, `
		INSERT INTO planets (`+planetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.args()...,
	)
	if err != nil {
		return apperr.NewPersistence("create planet", err)
	}
	return nil
}

func (s *Storer) GetPlanet(ctx context.Context, id uuid.UUID) (*domain.Planet, error) {
	p, err := scanPlanet(s.db.QueryRow(ctx, "SELECT "+planetColumns+" FROM planets WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.NewPersistence("get planet", err)
	}
	return p, nil
}

func (s *Storer) ListPlanets(ctx context.Context) ([]domain.Planet, error) {
	rows, err := s.db.Query(ctx, "SELECT "+planetColumns+" FROM planets ORDER BY created_at")
	if err != nil {
		return nil, apperr.NewPersistence("list planets", err)
	}
	defer rows.Close()

	planets := make([]domain.Planet, 0)
	for rows.Next() {
		p, err := scanPlanet(rows)
		if err != nil {
			return nil, apperr.NewPersistence("list planets", err)
		}
		planets = append(planets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewPersistence("list planets", err)
	}
	return planets, nil
}

func (s *Storer) UpdateMetadata(ctx context.Context, id uuid.UUID, name, about string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE planets SET
			name = COALESCE(NULLIF($2, ''), name),
			about = COALESCE(NULLIF($3, ''), about),
			updated_at = $4
		WHERE id = $1 AND (($2 <> '' AND name <> $2) OR ($3 <> '' AND about <> $3))`,
		id, name, about, time.Now().UTC(),
	)
	if err != nil {
		return false, apperr.NewPersistence("update planet metadata", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.planetScheme(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Storer) UpdateContentAddress(ctx context.Context, id uuid.UUID, cid string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE planets SET ens_cid = $2, updated_at = $3
		WHERE id = $1 AND scheme IN ('ens', 'dnslink')`,
		id, nullable(cid), time.Now().UTC(),
	)
	if err != nil {
		return apperr.NewPersistence("update content address", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return s.wrongScheme(ctx, id, "is not name-resolved")
}

func (s *Storer) UpdateChecksum(ctx context.Context, id uuid.UUID, checksum string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE planets SET feed_checksum = $2
		WHERE id = $1 AND scheme = 'http'`,
		id, nullable(checksum),
	)
	if err != nil {
		return apperr.NewPersistence("update feed checksum", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return s.wrongScheme(ctx, id, "is not a feed planet")
}

func (s *Storer) UpdatePointer(ctx context.Context, id uuid.UUID, pointer, cid string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE planets
		SET ipns = $2, last_published_cid = $3, last_published_at = $4, updated_at = $4
		WHERE id = $1 AND scheme = 'planet'`,
		id, pointer, cid, at,
	)
	if err != nil {
		return apperr.NewPersistence("update pointer", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := s.planetScheme(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("planet %s: %w", id, apperr.ErrNotOwned)
}

// planetScheme distinguishes a missing planet from one whose scheme rejected an update.
func (s *Storer) planetScheme(ctx context.Context, id uuid.UUID) (string, error) {
	var scheme string
	err := s.db.QueryRow(ctx, "SELECT scheme FROM planets WHERE id = $1", id).Scan(&scheme)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return "", apperr.NewPersistence("get planet scheme", err)
	}
	return scheme, nil
}

func (s *Storer) wrongScheme(ctx context.Context, id uuid.UUID, reason string) error {
	scheme, err := s.planetScheme(ctx, id)
	if err != nil {
		return err
	}
	return apperr.NewValidation(fmt.Sprintf("planet %s (%s) %s", id, scheme, reason))
}

func (s *Storer) DeletePlanet(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM planets WHERE id = $1", id)
	if err != nil {
		return apperr.NewPersistence("delete planet", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("planet %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
