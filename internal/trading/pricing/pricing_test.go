package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Aidin1998/commodex/pkg/errors"
	"github.com/Aidin1998/commodex/pkg/models"
)

func at(unix int64) time.Time { return time.Unix(unix, 0).UTC() }

func TestFluctuationRange(t *testing.T) {
	base := int64(1_700_000_000) // divisible by 10
	for i := int64(0); i < 10; i++ {
		assert.Equal(t, int(i)-5, Fluctuation(at(base+i)))
	}
	assert.Equal(t, -5, Fluctuation(at(0)))
	assert.Equal(t, 4, Fluctuation(at(-1)))
}

func TestNoUpdateWithinAnHour(t *testing.T) {
	last := at(1_700_000_000)
	c := models.Commodity{ID: 1, CurrentPrice: 100, LastPriceUpdate: last}

	for _, d := range []time.Duration{0, 30 * time.Minute, time.Hour} {
		p, ok, err := NextPrice(c, last.Add(d))
		require.NoError(t, err)
		assert.False(t, ok, d)
		assert.Equal(t, uint64(100), p)
	}
}

func TestUpdateAfterAnHour(t *testing.T) {
	last := at(1_700_000_000)
	c := models.Commodity{ID: 1, CurrentPrice: 100, LastPriceUpdate: last}

	now := last.Add(time.Hour + time.Second) // unix ends in 1: f = -4
	p, ok, err := NextPrice(c, now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(96), p)

	now = last.Add(time.Hour + 9*time.Second) // f = +4
	p, ok, _ = NextPrice(c, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(104), p)

	now = last.Add(time.Hour + 5*time.Second) // f = 0
	p, ok, _ = NextPrice(c, now)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), p)
}

func TestAdjustTruncates(t *testing.T) {
	p, err := Adjust(7, -5) // 6.65
	require.NoError(t, err)
	assert.Equal(t, uint64(6), p)

	p, err = Adjust(1, -5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p)

	p, err = Adjust(99, 4) // 102.96
	require.NoError(t, err)
	assert.Equal(t, uint64(102), p)
}

func TestAdjustLargeValues(t *testing.T) {
	p, err := Adjust(math.MaxUint64, -5)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/100*95+(math.MaxUint64%100)*95/100), p)

	_, err = Adjust(math.MaxUint64, 4)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestNextPriceIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Uint64Range(1, 1<<40).Draw(t, "price")
		last := rapid.Int64Range(0, 1<<34).Draw(t, "last")
		elapsed := rapid.Int64Range(0, 3*3600).Draw(t, "elapsed")
		c := models.Commodity{CurrentPrice: price, LastPriceUpdate: at(last)}
		now := at(last + elapsed)

		p1, ok1, err1 := NextPrice(c, now)
		p2, ok2, err2 := NextPrice(c, now)
		if p1 != p2 || ok1 != ok2 || err1 != nil || err2 != nil {
			t.Fatalf("NextPrice not deterministic")
		}
		if c.CurrentPrice != price {
			t.Fatalf("input mutated")
		}
		if elapsed <= 3600 {
			if ok1 || p1 != price {
				t.Fatalf("price moved after %ds", elapsed)
			}
			return
		}
		f := Fluctuation(now)
		if f < -5 || f > 4 {
			t.Fatalf("fluctuation %d out of range", f)
		}
		if want := price * uint64(100+f) / 100; !ok1 || p1 != want {
			t.Fatalf("got %d want %d", p1, want)
		}
	})
}
