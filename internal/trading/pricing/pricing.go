// Package pricing implements post-trade price discovery.
//
// The rule is a placeholder for an oracle: deterministic and replayable, and
// explicitly not a source of randomness. A replacement must keep NextPrice a
// pure function of the commodity (price and last update) and the current time.
package pricing

import (
	"math/bits"
	"time"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

// UpdateInterval is how long a price must stand before a trade may move it.
const UpdateInterval = time.Hour

// Fluctuation is the percentage applied at now: (unix seconds mod 10) - 5,
// which lands in [-5, 4].
func Fluctuation(now time.Time) int {
	r := now.Unix() % 10
	if r < 0 {
		r += 10
	}
	return int(r) - 5
}

// Due reports whether more than UpdateInterval, in whole seconds, has passed
// since the last update.
func Due(lastUpdate, now time.Time) bool {
	return now.Unix()-lastUpdate.Unix() > int64(UpdateInterval/time.Second)
}

// NextPrice returns the price the commodity should carry after a trade at
// now, and whether it changed. The error is non-nil only when the adjusted
// price does not fit in 64 bits.
func NextPrice(c models.Commodity, now time.Time) (uint64, bool, error) {
	if !Due(c.LastPriceUpdate, now) {
		return c.CurrentPrice, false, nil
	}
	p, err := Adjust(c.CurrentPrice, Fluctuation(now))
	if err != nil {
		return c.CurrentPrice, false, err
	}
	return p, true, nil
}

// Adjust computes price * (100 + pct) / 100, truncating. pct must be greater
// than -100.
func Adjust(price uint64, pct int) (uint64, error) {
	hi, lo := bits.Mul64(price, uint64(100+pct))
	if hi >= 100 {
		return 0, errors.ErrInvalidArgument.Explain("price %d adjusted by %d%% overflows", price, pct)
	}
	q, _ := bits.Div64(hi, lo, 100)
	return q, nil
}

// Oracle is the price discovery rule used by the trading engine.
type Oracle interface {
	NextPrice(c models.Commodity, now time.Time) (uint64, bool, error)
}

// TimeOracle is the default Oracle backed by NextPrice.
type TimeOracle struct{}

func (TimeOracle) NextPrice(c models.Commodity, now time.Time) (uint64, bool, error) {
	return NextPrice(c, now)
}
