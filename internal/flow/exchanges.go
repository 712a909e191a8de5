package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"go.uber.org/zap"
)

// ErrExchangeSource wraps every failure to load the exchange address file.
var ErrExchangeSource = errors.New("exchange address source")

// Classifier resolves an address to the exchange that owns it.
type Classifier interface {
	Classify(address string) (string, bool)
}

// Conflict records an address listed under more than one exchange.
type Conflict struct {
	Address string
	Kept    string // first owner in source order
	Dropped string
}

// ExchangeIndex is an immutable reverse index from address to exchange.
type ExchangeIndex struct {
	owner     map[string]string
	exchanges []string
	counts    map[string]int
	conflicts []Conflict
	invalid   int
}

// NewExchangeIndex builds an index from an in-memory mapping. Exchanges are
// indexed in name order, so with overlapping lists the alphabetically first
// exchange keeps the address.
func NewExchangeIndex(mapping map[string][]string) *ExchangeIndex {
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	idx := newIndex()
	for _, name := range names {
		idx.add(name, mapping[name], nil)
	}
	return idx
}

// LoadExchangeIndex reads a JSON object of exchange name to address array.
// Source order is preserved: on duplicate membership the exchange listed
// first keeps the address, and every conflict is logged. When params is
// non-nil, addresses that do not decode for that network are counted and
// logged but still indexed.
func LoadExchangeIndex(path string, params *chaincfg.Params, logger *zap.Logger) (*ExchangeIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeSource, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExchangeSource, path, err)
	}

	idx := newIndex()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExchangeSource, path, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected token %v", ErrExchangeSource, path, tok)
		}

		var addresses []string
		if err := dec.Decode(&addresses); err != nil {
			return nil, fmt.Errorf("%w: %s: exchange %q: %v", ErrExchangeSource, path, name, err)
		}
		idx.add(name, addresses, params)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExchangeSource, path, err)
	}

	for _, c := range idx.conflicts {
		logger.Warn("address listed under multiple exchanges",
			zap.String("address", c.Address),
			zap.String("kept", c.Kept),
			zap.String("dropped", c.Dropped))
	}
	if len(idx.conflicts) > 0 {
		logger.Warn("exchange address list has overlapping membership",
			zap.Int("conflicts", len(idx.conflicts)))
	}
	if idx.invalid > 0 {
		logger.Warn("exchange address list has addresses not valid for network",
			zap.String("network", params.Name),
			zap.Int("invalid", idx.invalid))
	}

	logger.Info("loaded exchange addresses",
		zap.Int("exchanges", len(idx.exchanges)),
		zap.Int("addresses", len(idx.owner)))

	return idx, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func newIndex() *ExchangeIndex {
	return &ExchangeIndex{
		owner:  make(map[string]string),
		counts: make(map[string]int),
	}
}

func (idx *ExchangeIndex) add(name string, addresses []string, params *chaincfg.Params) {
	if _, seen := idx.counts[name]; !seen {
		idx.exchanges = append(idx.exchanges, name)
		idx.counts[name] = 0
	}

	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		if params != nil && !validAddress(addr, params) {
			idx.invalid++
		}
		if kept, ok := idx.owner[addr]; ok {
			if kept != name {
				idx.conflicts = append(idx.conflicts, Conflict{Address: addr, Kept: kept, Dropped: name})
			}
			continue
		}
		idx.owner[addr] = name
		idx.counts[name]++
	}
}

func validAddress(addr string, params *chaincfg.Params) bool {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return false
	}
	return decoded.IsForNet(params)
}

// Classify returns the exchange owning address.
func (idx *ExchangeIndex) Classify(address string) (string, bool) {
	name, ok := idx.owner[address]
	return name, ok
}

// Exchanges returns exchange names in source order.
func (idx *ExchangeIndex) Exchanges() []string {
	out := make([]string, len(idx.exchanges))
	copy(out, idx.exchanges)
	return out
}

// AddressCount returns how many addresses are attributed to exchange.
func (idx *ExchangeIndex) AddressCount(exchange string) int {
	return idx.counts[exchange]
}

// Size returns the number of distinct indexed addresses.
func (idx *ExchangeIndex) Size() int {
	return len(idx.owner)
}

// Conflicts returns the duplicate memberships found while loading.
func (idx *ExchangeIndex) Conflicts() []Conflict {
	out := make([]Conflict, len(idx.conflicts))
	copy(out, idx.conflicts)
	return out
}

// InvalidAddresses returns how many listed addresses failed network validation.
func (idx *ExchangeIndex) InvalidAddresses() int {
	return idx.invalid
}
