package engine

import (
	"math/bits"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// FeeRate is the platform fee in percent of a trade's value.
const FeeRate = 2

// tradeValue returns amount * price, rejecting products that do not fit.
func tradeValue(amount, price uint64) (uint64, error) {
	hi, lo := bits.Mul64(amount, price)
	if hi != 0 {
		return 0, errors.ErrInvalidArgument.Explain("trade value of %d at price %d overflows", amount, price)
	}
	return lo, nil
}

// platformFee is total * FeeRate / 100 with truncation, computed without an
// intermediate product.
func platformFee(total uint64) uint64 {
	return total/100*FeeRate + (total%100)*FeeRate/100
}

// settle splits the value of a trade between the platform and the
// counterparty. For a buy the counterparty is the engine account, for a sell
// the seller.
func settle(total, supplied uint64, isBuy bool) models.Settlement {
	fee := platformFee(total)
	s := models.Settlement{Total: total, Fee: fee, Counterparty: total - fee}
	if isBuy {
		s.Refund = supplied - total
	}
	return s
}
