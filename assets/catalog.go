// Package assets holds the vehicle catalogue: which 3D model a vehicle type
// uses, where to fetch it from, and how to correct its baked-in pose.
package assets

import (
	"errors"
	"sort"

	"github.com/signalsfoundry/starfleet/model"
)

// ErrUnknownVehicle is returned when a ship references a vehicle type the
// catalogue does not know.
var ErrUnknownVehicle = errors.New("unknown vehicle type")

// Catalog is an immutable id -> asset table built once at start-up.
type Catalog struct {
	byID map[string]model.Asset
	ids  []string
}

// NewCatalog builds a catalogue from the given assets. Later entries with
// the same id replace earlier ones.
func NewCatalog(entries ...model.Asset) *Catalog {
	c := &Catalog{byID: make(map[string]model.Asset, len(entries))}
	for _, a := range entries {
		if a.Order == "" {
			a.Order = defaultOrder(a.Category)
		}
		c.byID[a.ID] = a
	}
	c.ids = make([]string, 0, len(c.byID))
	for id := range c.byID {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

// Default returns the catalogue of stock vehicles, optionally extended or
// overridden by extra entries.
func Default(extra ...model.Asset) *Catalog {
	return NewCatalog(append(stockVehicles(), extra...)...)
}

// GetByID looks up an asset. A miss is a normal result.
func (c *Catalog) GetByID(id string) (model.Asset, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Lookup is GetByID with an error for callers that propagate misses.
func (c *Catalog) Lookup(id string) (model.Asset, error) {
	if a, ok := c.byID[id]; ok {
		return a, nil
	}
	return model.Asset{}, ErrUnknownVehicle
}

// All returns every asset sorted by id.
func (c *Catalog) All() []model.Asset {
	return c.filter(func(model.Asset) bool { return true })
}

// ListFree returns the free-tier vehicles.
func (c *Catalog) ListFree() []model.Asset {
	return c.filter(func(a model.Asset) bool { return a.Tier() == model.PriceFree })
}

// ListPaid returns the paid-tier vehicles.
func (c *Catalog) ListPaid() []model.Asset {
	return c.filter(func(a model.Asset) bool { return a.Tier() == model.PricePaid })
}

// ListByCategory returns vehicles of one category.
func (c *Catalog) ListByCategory(cat model.Category) []model.Asset {
	return c.filter(func(a model.Asset) bool { return a.Category == cat })
}

// Len returns the number of assets.
func (c *Catalog) Len() int {
	return len(c.ids)
}

func (c *Catalog) filter(keep func(model.Asset) bool) []model.Asset {
	out := make([]model.Asset, 0, len(c.ids))
	for _, id := range c.ids {
		if a := c.byID[id]; keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Aircraft are small and bundled with the app, so the CDN copy is only a
// refresh; the larger spaceship models prefer the bundled file.
func defaultOrder(cat model.Category) model.SourceOrder {
	if cat == model.CategorySpaceship {
		return model.LocalFirst
	}
	return model.RemoteFirst
}
