package repository

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stwalsh4118/realty/internal/database"
	"github.com/stwalsh4118/realty/internal/models"
)

// AmenityRepository defines read access to the hospital, subway and bus tables.
type AmenityRepository interface {
	// List returns every amenity of kind, ordered by id.
	// Returns an empty slice if the table is empty (not an error).
	List(ctx context.Context, kind models.AmenityKind) ([]models.Amenity, error)
}

type amenityRepository struct {
	db *database.Database
}

// NewAmenityRepository creates a new instance of AmenityRepository.
func NewAmenityRepository(db *database.Database) AmenityRepository {
	return &amenityRepository{
		db: db,
	}
}

// amenitySource is the table and detail column backing one kind.
type amenitySource struct {
	table  string
	detail string
}

var amenitySources = map[models.AmenityKind]amenitySource{
	models.AmenityHospital: {table: "hospital", detail: "phone"},
	models.AmenitySubway:   {table: "subway_station", detail: "line"},
	models.AmenityBus:      {table: "bus_station", detail: "''"},
}

func renderAmenities(kind models.AmenityKind) (string, []interface{}, error) {
	src, ok := amenitySources[kind]
	if !ok {
		return "", nil, fmt.Errorf("unknown amenity kind %q", kind)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id::bigint", "name", sb.As(src.detail, "detail"), "latitude", "longitude")
	sb.From(src.table)
	sb.OrderBy("id")
	query, args := sb.Build()
	return query, args, nil
}

// List loads all rows of the table backing kind.
func (r *amenityRepository) List(ctx context.Context, kind models.AmenityKind) ([]models.Amenity, error) {
	query, args, err := renderAmenities(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s amenities: %w", kind, err)
	}
	defer rows.Close()

	amenities := []models.Amenity{}
	for rows.Next() {
		a := models.Amenity{Kind: kind}
		if err := rows.Scan(&a.ID, &a.Name, &a.Detail, &a.Latitude, &a.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan %s amenity row: %w", kind, err)
		}
		amenities = append(amenities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s amenity rows: %w", kind, err)
	}
	return amenities, nil
}
