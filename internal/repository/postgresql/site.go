package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/database"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geo"
)

type siteRepository struct {
	db *database.DB
}

func NewSiteRepository(db *database.DB) site.Repository {
	return &siteRepository{db: db}
}

// GetByName implements site.Repository. Site names are the client sites'
// business keys; the scheduling side keeps them unique.
func (s *siteRepository) GetByName(ctx context.Context, name string) (site.Site, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT id, name, address, latitude, longitude, created_at, updated_at
		FROM sites
		WHERE name = $1
		LIMIT 1
	`

	var st site.Site
	err := q.QueryRow(ctx, query, name).Scan(
		&st.ID, &st.Name, &st.Address, &st.Latitude, &st.Longitude,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return site.Site{}, site.ErrSiteNotFound
		}
		return site.Site{}, fmt.Errorf("failed to get site by name: %w", err)
	}

	return st, nil
}

// UpdateCoordinates implements site.Repository. Geocoded coordinates are
// written back so the lookup never has to geocode the same site twice.
func (s *siteRepository) UpdateCoordinates(ctx context.Context, name string, coord geo.Coordinate) error {
	q := GetQuerier(ctx, s.db)

	query := `
		UPDATE sites
		SET latitude = $2,
			longitude = $3,
			updated_at = NOW()
		WHERE name = $1
	`

	tag, err := q.Exec(ctx, query, name, coord.Latitude, coord.Longitude)
	if err != nil {
		return fmt.Errorf("failed to update site coordinates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return site.ErrSiteNotFound
	}

	return nil
}
