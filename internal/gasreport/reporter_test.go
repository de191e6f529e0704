package gasreport

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestReporter_Aggregates(t *testing.T) {
	r := NewReporter(true, "USD", gwei(225))
	r.Record("transferFrom", 51_000)
	r.Record("transferFrom", 53_000)
	r.Record("transfer", 34_000)

	stats := r.Stats()
	if len(stats) != 2 {
		t.Fatalf("Expected 2 methods, got %d", len(stats))
	}
	if stats[0].Method != "transfer" {
		t.Errorf("Expected sorted output, got %s first", stats[0].Method)
	}

	tf := stats[1]
	if tf.Calls != 2 || tf.Min != 51_000 || tf.Max != 53_000 || tf.Avg() != 52_000 {
		t.Errorf("Unexpected transferFrom stats %+v (avg %d)", tf, tf.Avg())
	}
}

func TestReporter_Fee(t *testing.T) {
	r := NewReporter(true, "USD", gwei(225))

	// 2,100,000 gas at 225 gwei = 0.4725 native
	if got := r.Fee(2_100_000).String(); got != "0.4725" {
		t.Errorf("Expected 0.4725, got %s", got)
	}
}

func TestReporter_Disabled(t *testing.T) {
	r := NewReporter(false, "USD", gwei(1))
	r.Record("transfer", 34_000)
	if len(r.Stats()) != 0 {
		t.Error("Expected disabled reporter to record nothing")
	}

	var buf bytes.Buffer
	r.Print(&buf)
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}

	var nilReporter *Reporter
	nilReporter.Record("transfer", 1)
	if nilReporter.Enabled() {
		t.Error("Expected nil reporter to be disabled")
	}
}

func TestReporter_Print(t *testing.T) {
	r := NewReporter(true, "USD", gwei(225))
	r.Record("transfer", 34_494)

	var buf bytes.Buffer
	r.Print(&buf)

	out := buf.String()
	for _, want := range []string{"225 gwei", "TRANSFER", "34494"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
