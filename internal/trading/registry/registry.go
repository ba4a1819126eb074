// Package registry owns the commodity catalog and the current price of each
// commodity.
//
// A Registry is not safe for concurrent use; the trading service serializes
// every call.
package registry

import (
	"time"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// Registry is the catalog of registered commodities.
type Registry struct {
	admin       models.AccountID
	commodities []models.Commodity // commodities[i] has ID i+1
}

// New creates an empty registry whose privileged operations are reserved to admin.
func New(admin models.AccountID) *Registry {
	return &Registry{admin: admin}
}

// Register adds a new active commodity and returns its id. Ids start at 1
// and are never reused.
func (r *Registry) Register(caller models.AccountID, name, symbol string, initialPrice, totalSupply uint64, at time.Time) (uint64, error) {
	if caller != r.admin {
		return 0, errors.ErrUnauthorized.Explain("only the administrator may register commodities")
	}
	if err := validateRegistration(name, symbol, initialPrice, totalSupply); err != nil {
		return 0, err
	}

	id := uint64(len(r.commodities)) + 1
	r.commodities = append(r.commodities, models.Commodity{
		ID:              id,
		Name:            name,
		Symbol:          symbol,
		TotalSupply:     totalSupply,
		CurrentPrice:    initialPrice,
		LastPriceUpdate: at,
		IsActive:        true,
	})
	return id, nil
}

func validateRegistration(name, symbol string, initialPrice, totalSupply uint64) error {
	err := errors.ErrInvalidArgument.Explain("invalid commodity registration")
	invalid := false
	if name == "" {
		err, invalid = err.WithField("name", "must not be empty"), true
	}
	if symbol == "" {
		err, invalid = err.WithField("symbol", "must not be empty"), true
	}
	if initialPrice == 0 {
		err, invalid = err.WithField("initial_price", "must be positive"), true
	}
	if totalSupply == 0 {
		err, invalid = err.WithField("total_supply", "must be positive"), true
	}
	if invalid {
		return err
	}
	return nil
}

// Get returns a copy of the commodity with the given id.
func (r *Registry) Get(id uint64) (models.Commodity, error) {
	c, err := r.lookup(id)
	if err != nil {
		return models.Commodity{}, err
	}
	return *c, nil
}

func (r *Registry) lookup(id uint64) (*models.Commodity, error) {
	if id == 0 || id > uint64(len(r.commodities)) {
		return nil, errors.ErrNotFound.Explain("commodity %d not found", id)
	}
	return &r.commodities[id-1], nil
}

// SetPrice is the administrator price override.
func (r *Registry) SetPrice(caller models.AccountID, id, newPrice uint64, at time.Time) error {
	if caller != r.admin {
		return errors.ErrUnauthorized.Explain("only the administrator may set prices")
	}
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return errors.ErrInactiveCommodity.Explain("commodity %d is not active", id)
	}
	if newPrice == 0 {
		return errors.ErrInvalidArgument.Explain("price must be positive").WithField("price", "must be positive")
	}
	c.CurrentPrice = newPrice
	c.LastPriceUpdate = at
	return nil
}

// ApplyPriceUpdate commits a computed price without a capability check. It
// is only reachable from the trading engine.
func (r *Registry) ApplyPriceUpdate(id, newPrice uint64, at time.Time) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.CurrentPrice = newPrice
	c.LastPriceUpdate = at
	return nil
}

// SetActive flips the active flag. No trading operation deactivates a
// commodity, so only tests call it today.
func (r *Registry) SetActive(id uint64, active bool) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	c.IsActive = active
	return nil
}

// Count returns the number of registered commodities.
func (r *Registry) Count() uint64 {
	return uint64(len(r.commodities))
}

// List returns copies of all commodities in id order.
func (r *Registry) List() []models.Commodity {
	out := make([]models.Commodity, len(r.commodities))
	copy(out, r.commodities)
	return out
}
