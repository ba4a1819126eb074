package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Aidin1998/commodex/internal/ledger"
	"github.com/Aidin1998/commodex/pkg/models"
)

// engineModel drives random buys, sells, price changes and fee withdrawals
// and checks that value is conserved, ids stay sequential and holdings
// match what the successful trades imply.
type engineModel struct {
	ctx      context.Context
	clock    *fakeClock
	ledger   *ledger.MemoryLedger
	engine   *Engine
	traders  []models.AccountID
	supply   uint64
	holdings map[models.AccountID]map[uint64]uint64
	trades   uint64
}

func (m *engineModel) init(t *rapid.T) {
	m.ctx = context.Background()
	m.clock = &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m.ledger = ledger.NewMemoryLedger()
	eng, err := NewEngine(zap.NewNop(), Config{Admin: admin, Self: engAcc, Clock: m.clock.Now}, m.ledger, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	m.engine = eng
	m.traders = []models.AccountID{alice, bob, "carol"}
	m.holdings = make(map[models.AccountID]map[uint64]uint64)
	for _, tr := range m.traders {
		v := rapid.Uint64Range(0, 100_000).Draw(t, "funds")
		if err := m.ledger.Deposit(m.ctx, tr, v); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		m.supply += v
		m.holdings[tr] = make(map[uint64]uint64)
	}
	n := rapid.IntRange(1, 3).Draw(t, "commodities")
	for i := 0; i < n; i++ {
		price := rapid.Uint64Range(1, 500).Draw(t, "price")
		id, err := m.engine.RegisterCommodity(m.ctx, admin, "C", "C", price, 1_000_000)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if id != uint64(i+1) {
			t.Fatalf("commodity id %d, want %d", id, i+1)
		}
	}
}

func (m *engineModel) trader(t *rapid.T) models.AccountID {
	return rapid.SampledFrom(m.traders).Draw(t, "trader")
}

func (m *engineModel) commodity(t *rapid.T) uint64 {
	return rapid.Uint64Range(1, m.engine.CommodityCount()).Draw(t, "commodity")
}

func (m *engineModel) buy(t *rapid.T) {
	tr, id := m.trader(t), m.commodity(t)
	amount := rapid.Uint64Range(0, 50).Draw(t, "amount")
	supplied := rapid.Uint64Range(0, 30_000).Draw(t, "supplied")
	exec, err := m.engine.Buy(m.ctx, tr, id, amount, supplied)
	if err != nil {
		return
	}
	m.trades++
	if exec.Trade.ID != m.trades {
		t.Fatalf("trade id %d, want %d", exec.Trade.ID, m.trades)
	}
	if exec.Settlement.Fee+exec.Settlement.Counterparty != exec.Settlement.Total {
		t.Fatalf("fee %d + counterparty %d != total %d", exec.Settlement.Fee, exec.Settlement.Counterparty, exec.Settlement.Total)
	}
	m.holdings[tr][id] += amount
}

func (m *engineModel) sell(t *rapid.T) {
	tr, id := m.trader(t), m.commodity(t)
	amount := rapid.Uint64Range(0, 60).Draw(t, "amount")
	exec, err := m.engine.Sell(m.ctx, tr, id, amount)
	if err != nil {
		return
	}
	if m.holdings[tr][id] < amount {
		t.Fatalf("sold %d with holding %d", amount, m.holdings[tr][id])
	}
	m.trades++
	if exec.Trade.ID != m.trades {
		t.Fatalf("trade id %d, want %d", exec.Trade.ID, m.trades)
	}
	m.holdings[tr][id] -= amount
}

func (m *engineModel) setPrice(t *rapid.T) {
	id := m.commodity(t)
	price := rapid.Uint64Range(0, 500).Draw(t, "price")
	_ = m.engine.SetPrice(m.ctx, admin, id, price)
}

func (m *engineModel) advance(t *rapid.T) {
	m.clock.Advance(time.Duration(rapid.Int64Range(0, 3*3600).Draw(t, "seconds")) * time.Second)
}

func (m *engineModel) withdraw(t *rapid.T) {
	if _, err := m.engine.WithdrawFees(m.ctx, admin); err != nil {
		t.Fatalf("withdraw fees: %v", err)
	}
}

func (m *engineModel) check(t *rapid.T) {
	var total uint64
	for _, a := range append([]models.AccountID{admin, engAcc}, m.traders...) {
		v, _ := m.ledger.BalanceOf(m.ctx, a)
		total += v
	}
	if total != m.supply {
		t.Fatalf("value not conserved: %d, want %d", total, m.supply)
	}
	if m.engine.TradeCount() != m.trades {
		t.Fatalf("trade count %d, want %d", m.engine.TradeCount(), m.trades)
	}
	for tr, byID := range m.holdings {
		for id, want := range byID {
			if got := m.engine.Balance(tr, id); got != want {
				t.Fatalf("holding of %s in %d is %d, want %d", tr, id, got, want)
			}
		}
	}
}

func TestEngineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := &engineModel{}
		m.init(t)
		t.Repeat(map[string]func(*rapid.T){
			"buy":      m.buy,
			"sell":     m.sell,
			"setPrice": m.setPrice,
			"advance":  m.advance,
			"withdraw": m.withdraw,
			"":         m.check,
		})
	})
}
