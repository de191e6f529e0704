package gasreport

import (
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// MethodStats aggregates the gas used by one token method
type MethodStats struct {
	Method string
	Calls  int
	Min    uint64
	Max    uint64
	Total  uint64
}

func (m MethodStats) Avg() uint64 {
	if m.Calls == 0 {
		return 0
	}
	return m.Total / uint64(m.Calls)
}

// Reporter collects gas usage per method. A nil or disabled Reporter
// records nothing, so callers can hold one unconditionally.
type Reporter struct {
	enabled  bool
	currency string
	gasPrice *big.Int
	mu       sync.Mutex
	methods  map[string]*MethodStats
}

func NewReporter(enabled bool, currency string, gasPrice *big.Int) *Reporter {
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}
	return &Reporter{
		enabled:  enabled,
		currency: currency,
		gasPrice: new(big.Int).Set(gasPrice),
		methods:  make(map[string]*MethodStats),
	}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

func (r *Reporter) Record(method string, gasUsed uint64) {
	if !r.Enabled() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.methods[method]
	if !ok {
		stats = &MethodStats{Method: method, Min: gasUsed, Max: gasUsed}
		r.methods[method] = stats
	}
	stats.Calls++
	stats.Total += gasUsed
	if gasUsed < stats.Min {
		stats.Min = gasUsed
	}
	if gasUsed > stats.Max {
		stats.Max = gasUsed
	}
}

// Stats returns a snapshot sorted by method name
func (r *Reporter) Stats() []MethodStats {
	if !r.Enabled() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]MethodStats, 0, len(r.methods))
	for _, s := range r.methods {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Method < stats[j].Method })
	return stats
}

// Fee converts gas into native units at the configured gas price
func (r *Reporter) Fee(gas uint64) decimal.Decimal {
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gas), r.gasPrice)
	return decimal.NewFromBigInt(wei, -18)
}

// Print renders the collected figures as a table
func (r *Reporter) Print(w io.Writer) {
	if !r.Enabled() {
		return
	}

	gwei := decimal.NewFromBigInt(r.gasPrice, -9)
	fmt.Fprintf(w, "Gas usage (gas price %s gwei, %s conversion unavailable)\n", gwei.String(), r.currency)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Calls", "Min", "Max", "Avg", "Avg fee (native)"})
	for _, s := range r.Stats() {
		table.Append([]string{
			s.Method,
			strconv.Itoa(s.Calls),
			strconv.FormatUint(s.Min, 10),
			strconv.FormatUint(s.Max, 10),
			strconv.FormatUint(s.Avg(), 10),
			r.Fee(s.Avg()).String(),
		})
	}
	table.Render()
}
