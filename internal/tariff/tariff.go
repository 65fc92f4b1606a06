package tariff

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

// TokenDecimals — разрядность нативного токена сети (wei).
const TokenDecimals = 18

// DefaultRates are the per-class toll rates in decimal token units,
// used until the first successful refresh from the published schedule.
var DefaultRates = map[string]string{
	models.VehicleClass2W:  "0.0005",
	models.VehicleClass4W:  "0.001",
	models.VehicleClassLCV: "0.0015",
	models.VehicleClassBUS: "0.002",
	models.VehicleClassHCV: "0.0025",
}

// Table holds the current per-class rates. Reads are frequent (every
// pass issue and scan), replacement is rare (refresh job), hence RWMutex.
type Table struct {
	mu        sync.RWMutex
	rates     map[string]string
	updatedAt time.Time
}

func NewTable() *Table {
	rates := make(map[string]string, len(DefaultRates))
	for class, rate := range DefaultRates {
		rates[class] = rate
	}
	return &Table{rates: rates, updatedAt: time.Now()}
}

// RateFor returns the rate for a class code. Unknown classes get the
// default class rate so callers always have a chargeable amount.
func (t *Table) RateFor(class string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rate, ok := t.rates[class]; ok {
		return rate
	}
	return t.rates[models.DefaultVehicleClass]
}

// Snapshot returns a copy of the current rates.
func (t *Table) Snapshot() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string, len(t.rates))
	for class, rate := range t.rates {
		out[class] = rate
	}
	return out
}

func (t *Table) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// Replace swaps the whole table atomically. The new set is validated
// first: only known class codes, only parseable non-negative amounts.
// Частичная таблица допустима — отсутствующие классы берут ставку 4W.
func (t *Table) Replace(rates map[string]string) error {
	if len(rates) == 0 {
		return fmt.Errorf("empty rate table")
	}
	if _, ok := rates[models.DefaultVehicleClass]; !ok {
		return fmt.Errorf("rate table has no %s rate to fall back to", models.DefaultVehicleClass)
	}

	next := make(map[string]string, len(rates))
	for class, rate := range rates {
		if !models.IsValidVehicleClass(class) {
			return fmt.Errorf("unknown vehicle class %q in rate table", class)
		}
		wei, err := ToWei(rate)
		if err != nil {
			return fmt.Errorf("rate for %s: %w", class, err)
		}
		if wei.Sign() < 0 {
			return fmt.Errorf("rate for %s is negative: %s", class, rate)
		}
		next[class] = rate
	}

	t.mu.Lock()
	t.rates = next
	t.updatedAt = time.Now()
	t.mu.Unlock()
	return nil
}

// ToWei converts a decimal token string (e.g. "0.0015") to wei (*big.Int).
// 1 token = 10^18 wei.
func ToWei(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty token amount")
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid token amount: %s", amount)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	if len(frac) > TokenDecimals {
		frac = frac[:TokenDecimals]
	}
	for len(frac) < TokenDecimals {
		frac += "0"
	}

	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token amount: %s", amount)
	}
	return wei, nil
}
