package flow_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"exchangeflow/internal/flow"

	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	genesisAddr = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	p2shAddr    = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"
)

func writeExchanges(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exchanges.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write exchanges: %v", err)
	}
	return path
}

// go test -v --run TestLoadExchangeIndex
func TestLoadExchangeIndex(t *testing.T) {
	path := writeExchanges(t, `{
		"ExchB": ["`+p2shAddr+`", "bogus"],
		"ExchA": ["`+genesisAddr+`", "`+p2shAddr+`", ""]
	}`)

	idx, err := flow.LoadExchangeIndex(path, &chaincfg.MainNetParams, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got := idx.Exchanges(); len(got) != 2 || got[0] != "ExchB" || got[1] != "ExchA" {
		t.Errorf("expected source order [ExchB ExchA], got %v", got)
	}

	if name, ok := idx.Classify(genesisAddr); !ok || name != "ExchA" {
		t.Errorf("expected ExchA for genesis address, got %q %v", name, ok)
	}
	// first listed exchange keeps a duplicated address
	if name, ok := idx.Classify(p2shAddr); !ok || name != "ExchB" {
		t.Errorf("expected ExchB to keep duplicated address, got %q %v", name, ok)
	}
	if _, ok := idx.Classify("unknown"); ok {
		t.Error("expected no match for unknown address")
	}

	conflicts := idx.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0] != (flow.Conflict{Address: p2shAddr, Kept: "ExchB", Dropped: "ExchA"}) {
		t.Errorf("unexpected conflict: %+v", conflicts[0])
	}

	if idx.InvalidAddresses() != 1 {
		t.Errorf("expected 1 invalid address, got %d", idx.InvalidAddresses())
	}
	if idx.Size() != 3 {
		t.Errorf("expected 3 indexed addresses, got %d", idx.Size())
	}
	if idx.AddressCount("ExchA") != 1 || idx.AddressCount("ExchB") != 2 {
		t.Errorf("unexpected address counts: A=%d B=%d", idx.AddressCount("ExchA"), idx.AddressCount("ExchB"))
	}
}

// go test -v --run TestLoadExchangeIndexErrors
func TestLoadExchangeIndexErrors(t *testing.T) {
	tests := map[string]string{
		"not an object": `["a", "b"]`,
		"bad list":      `{"ExchA": "1abc"}`,
		"truncated":     `{"ExchA": ["1abc"]`,
		"non string":    `{"ExchA": [1, 2]}`,
		"garbage":       `not json`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := flow.LoadExchangeIndex(writeExchanges(t, body), nil, nil)
			if !errors.Is(err, flow.ErrExchangeSource) {
				t.Fatalf("expected ErrExchangeSource, got %v", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := flow.LoadExchangeIndex(filepath.Join(t.TempDir(), "nope.json"), nil, nil)
		if !errors.Is(err, flow.ErrExchangeSource) {
			t.Fatalf("expected ErrExchangeSource, got %v", err)
		}
	})
}

// go test -v --run TestNewExchangeIndex
func TestNewExchangeIndex(t *testing.T) {
	idx := flow.NewExchangeIndex(map[string][]string{
		"Zeta":  {"shared", "z1"},
		"Alpha": {"shared", "a1"},
	})

	if name, _ := idx.Classify("shared"); name != "Alpha" {
		t.Errorf("expected alphabetical first owner Alpha, got %q", name)
	}
	if name, _ := idx.Classify("z1"); name != "Zeta" {
		t.Errorf("expected Zeta, got %q", name)
	}
	if len(idx.Conflicts()) != 1 {
		t.Errorf("expected 1 conflict, got %d", len(idx.Conflicts()))
	}
}

// go test -v --run TestLoadExchangeIndexWarnsOnConflicts
func TestLoadExchangeIndexWarnsOnConflicts(t *testing.T) {
	path := writeExchanges(t, `{
		"ExchA": ["`+genesisAddr+`", "`+p2shAddr+`"],
		"ExchB": ["`+genesisAddr+`"],
		"ExchC": ["`+p2shAddr+`", "`+genesisAddr+`"]
	}`)

	core, logs := observer.New(zapcore.WarnLevel)
	idx, err := flow.LoadExchangeIndex(path, &chaincfg.MainNetParams, zap.New(core))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	conflicts := idx.Conflicts()
	if len(conflicts) != 3 {
		t.Fatalf("expected 3 conflicts, got %+v", conflicts)
	}

	perConflict := logs.FilterMessage("address listed under multiple exchanges").All()
	if len(perConflict) != len(conflicts) {
		t.Fatalf("expected %d conflict warnings, got %d", len(conflicts), len(perConflict))
	}
	first := perConflict[0].ContextMap()
	if first["address"] != genesisAddr || first["kept"] != "ExchA" || first["dropped"] != "ExchB" {
		t.Errorf("unexpected warning fields: %v", first)
	}

	summary := logs.FilterMessage("exchange address list has overlapping membership").All()
	if len(summary) != 1 || summary[0].ContextMap()["conflicts"] != int64(3) {
		t.Errorf("expected one summary warning with 3 conflicts, got %+v", summary)
	}
	if logs.Len() != len(conflicts)+1 {
		t.Errorf("expected %d warnings in total, got %d", len(conflicts)+1, logs.Len())
	}
}

// go test -v --run TestLoadExchangeIndexNoConflictWarnings
func TestLoadExchangeIndexNoConflictWarnings(t *testing.T) {
	path := writeExchanges(t, `{"ExchA": ["`+genesisAddr+`"], "ExchB": ["`+p2shAddr+`"]}`)

	core, logs := observer.New(zapcore.WarnLevel)
	if _, err := flow.LoadExchangeIndex(path, &chaincfg.MainNetParams, zap.New(core)); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %+v", logs.All())
	}
}
