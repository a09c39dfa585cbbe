package repository

import (
	"context"
	"errors"
	"fmt"

	"phonecase-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PhoneRepository handles database operations for phone brands and models
type PhoneRepository struct {
	db DB
}

// NewPhoneRepository creates a new phone repository
func NewPhoneRepository(db DB) *PhoneRepository {
	return &PhoneRepository{db: db}
}

// ListBrands returns brands that have at least one model with a mask
func (r *PhoneRepository) ListBrands(ctx context.Context) ([]models.CatalogItem, error) {
	query := `
		SELECT DISTINCT b.id, b.name
		FROM phone_brands b
		JOIN phone_models m ON m.brand_id = b.id
		WHERE m.mask_available = TRUE
		ORDER BY b.name
	`
	return r.listItems(ctx, query)
}

// ListModels returns the models of a brand that have a mask
func (r *PhoneRepository) ListModels(ctx context.Context, brandID int64) ([]models.CatalogItem, error) {
	query := `
		SELECT id, name
		FROM phone_models
		WHERE brand_id = $1 AND mask_available = TRUE
		ORDER BY name
	`
	return r.listItems(ctx, query, brandID)
}

func (r *PhoneRepository) listItems(ctx context.Context, query string, args ...any) ([]models.CatalogItem, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalogue: %w", err)
	}
	defer rows.Close()

	items := []models.CatalogItem{}
	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("failed to scan catalogue row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalogue: %w", err)
	}

	return items, nil
}

// GetModelByID retrieves a phone model by ID
func (r *PhoneRepository) GetModelByID(ctx context.Context, id int64) (*models.PhoneModel, error) {
	query := `
		SELECT id, name, brand_id, phone_width, phone_height,
		       COALESCE(s3_path, ''), mask_available, created_at, updated_at
		FROM phone_models
		WHERE id = $1
	`
	var m models.PhoneModel
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.BrandID, &m.WidthMM, &m.HeightMM,
		&m.MaskPath, &m.MaskAvailable, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("phone model %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get phone model: %w", err)
	}
	return &m, nil
}
