package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// Catalog reads package pricing and per-departure capacity. A date without
// its own departure row falls back to the package default.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) GetCapacity(ctx context.Context, packageID int64, date time.Time) (int, error) {
	query := `
	SELECT COALESCE(d.capacity, p.default_capacity)
	FROM tour_packages p
	LEFT JOIN package_departures d ON d.package_id = p.id AND d.travel_date = $2
	WHERE p.id = $1
	`

	var capacity int
	err := c.db.QueryRowContext(ctx, query, packageID, domain.TruncateDate(date).Format(domain.DateLayout)).Scan(&capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrPackageNotFound
		}
		return 0, err
	}

	return capacity, nil
}

func (c *Catalog) GetUnitPrice(ctx context.Context, packageID int64) (int64, error) {
	var price int64
	err := c.db.QueryRowContext(ctx, `SELECT unit_price FROM tour_packages WHERE id = $1`, packageID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrPackageNotFound
		}
		return 0, err
	}

	return price, nil
}

var _ ports.Catalog = (*Catalog)(nil)
