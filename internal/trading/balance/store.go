// Package balance keeps per-account, per-commodity holdings.
package balance

import (
	"sort"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

type holdingKey struct {
	account     models.AccountID
	commodityID uint64
}

// Store maps (account, commodity) to a non-negative amount. Absent entries
// read as zero. Not safe for concurrent use.
type Store struct {
	holdings map[holdingKey]uint64
}

func NewStore() *Store {
	return &Store{holdings: make(map[holdingKey]uint64)}
}

// Get returns the holding, 0 if the account never held the commodity.
func (s *Store) Get(account models.AccountID, commodityID uint64) uint64 {
	return s.holdings[holdingKey{account, commodityID}]
}

// Credit adds amount to the holding. The caller has already validated that
// amount is positive and that the sum fits.
func (s *Store) Credit(account models.AccountID, commodityID, amount uint64) {
	s.holdings[holdingKey{account, commodityID}] += amount
}

// Debit subtracts amount, failing with InsufficientBalance rather than going
// below zero.
func (s *Store) Debit(account models.AccountID, commodityID, amount uint64) error {
	key := holdingKey{account, commodityID}
	current := s.holdings[key]
	if current < amount {
		return errors.ErrInsufficientBalance.Explain("account %s holds %d of commodity %d, needs %d",
			account, current, commodityID, amount)
	}
	if current == amount {
		delete(s.holdings, key)
		return nil
	}
	s.holdings[key] = current - amount
	return nil
}

// Holdings lists the non-zero holdings of account ordered by commodity id.
func (s *Store) Holdings(account models.AccountID) []models.Holding {
	var out []models.Holding
	for key, amount := range s.holdings {
		if key.account == account && amount > 0 {
			out = append(out, models.Holding{CommodityID: key.commodityID, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommodityID < out[j].CommodityID })
	return out
}
