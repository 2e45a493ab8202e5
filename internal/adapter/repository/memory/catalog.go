package memory

import (
	"context"
	"sync"
	"time"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

type catalogPackage struct {
	unitPrice int64
	capacity  int
	// dates overrides capacity for specific travel dates.
	dates map[string]int
}

// Catalog is an in-process package catalog, used for local runs and tests.
// When fallback is enabled unknown packages resolve to the default capacity
// and price instead of ErrPackageNotFound.
type Catalog struct {
	mu       sync.RWMutex
	packages map[int64]*catalogPackage

	fallback        bool
	defaultCapacity int
	defaultPrice    int64
}

func NewCatalog() *Catalog {
	return &Catalog{packages: make(map[int64]*catalogPackage)}
}

// NewCatalogWithDefaults returns a catalog that answers for any package id.
func NewCatalogWithDefaults(capacity int, unitPrice int64) *Catalog {
	c := NewCatalog()
	c.fallback = true
	c.defaultCapacity = capacity
	c.defaultPrice = unitPrice
	return c
}

func (c *Catalog) SetPackage(packageID int64, capacity int, unitPrice int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.packages[packageID]
	if !ok {
		p = &catalogPackage{dates: make(map[string]int)}
		c.packages[packageID] = p
	}
	p.capacity = capacity
	p.unitPrice = unitPrice
}

// SetDateCapacity overrides the capacity of a single travel date.
func (c *Catalog) SetDateCapacity(packageID int64, date time.Time, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.packages[packageID]
	if !ok {
		p = &catalogPackage{dates: make(map[string]int)}
		c.packages[packageID] = p
	}
	p.dates[domain.TruncateDate(date).Format(domain.DateLayout)] = capacity
}

func (c *Catalog) GetCapacity(ctx context.Context, packageID int64, date time.Time) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.packages[packageID]
	if !ok {
		if c.fallback {
			return c.defaultCapacity, nil
		}
		return 0, domain.ErrPackageNotFound
	}
	if n, ok := p.dates[domain.TruncateDate(date).Format(domain.DateLayout)]; ok {
		return n, nil
	}
	return p.capacity, nil
}

func (c *Catalog) GetUnitPrice(ctx context.Context, packageID int64) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.packages[packageID]
	if !ok {
		if c.fallback {
			return c.defaultPrice, nil
		}
		return 0, domain.ErrPackageNotFound
	}
	return p.unitPrice, nil
}

var _ ports.Catalog = (*Catalog)(nil)
