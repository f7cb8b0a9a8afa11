// Package macros substitutes OpenRTB auction macros such as ${AUCTION_PRICE}
// into winning creative markup before it is served.
package macros

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adbroker/internal/observability"
)

// DefaultCurrency is reported by ${AUCTION_CURRENCY}; bids are not
// currency-converted.
const DefaultCurrency = "USD"

// ExpansionFunc produces the value of one macro.
type ExpansionFunc func(ctx *ExpansionContext) (string, error)

// ExpansionContext holds the clearing values of one auction.
type ExpansionContext struct {
	AuctionID string
	AdUnitID  string
	Bidder    string
	Price     float64
	Currency  string
	Timestamp time.Time
}

// Expander replaces ${NAME} tokens in creative markup. Unknown tokens are
// left untouched so bidder-specific macros survive.
type Expander struct {
	logger       *zap.Logger
	metrics      observability.MetricsRegistry
	expansions   map[string]ExpansionFunc
	expansionsMu sync.RWMutex
	strictMode   bool // any failed expansion fails the whole markup
}

// NewExpander returns a lenient expander with the standard auction macros.
func NewExpander(logger *zap.Logger, metrics observability.MetricsRegistry) *Expander {
	return NewExpanderWithMode(logger, metrics, false)
}

// NewExpanderWithMode is NewExpander with configurable strictness.
func NewExpanderWithMode(logger *zap.Logger, metrics observability.MetricsRegistry, strictMode bool) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	e := &Expander{
		logger:     logger,
		metrics:    metrics,
		expansions: make(map[string]ExpansionFunc),
		strictMode: strictMode,
	}
	e.registerDefaultMacros()
	return e
}

// Expand substitutes every registered macro found in markup. Values are
// query-escaped since macros almost always sit inside tracking URLs. In
// lenient mode a failing macro is logged and left in place.
func (e *Expander) Expand(markup string, ctx *ExpansionContext) (string, error) {
	names := findMacros(markup)
	if len(names) == 0 {
		return markup, nil
	}

	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()

	var replacements []string
	for _, name := range names {
		fn, ok := e.expansions[name]
		if !ok {
			continue
		}
		value, err := fn(ctx)
		if err != nil {
			e.metrics.IncrementMacroExpansions(name, "failed")
			if e.strictMode {
				return "", fmt.Errorf("expand macro %s: %w", name, err)
			}
			e.logger.Warn("macro expansion failed, leaving token in place",
				zap.String("macro", name),
				zap.String("auction_id", ctx.AuctionID),
				zap.Error(err))
			continue
		}
		replacements = append(replacements, token(name), url.QueryEscape(value))
		e.metrics.IncrementMacroExpansions(name, "expanded")
	}
	if len(replacements) == 0 {
		return markup, nil
	}
	return strings.NewReplacer(replacements...).Replace(markup), nil
}

// RegisterMacro adds or replaces the expansion for name.
func (e *Expander) RegisterMacro(name string, fn ExpansionFunc) error {
	if name == "" {
		return fmt.Errorf("macro name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("expansion function cannot be nil")
	}
	e.expansionsMu.Lock()
	defer e.expansionsMu.Unlock()
	e.expansions[name] = fn
	return nil
}

// RegisteredMacros returns the registered macro names, sorted.
func (e *Expander) RegisteredMacros() []string {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()
	names := make([]string, 0, len(e.expansions))
	for name := range e.expansions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Unsupported lists the macros in markup that this expander cannot fill.
func (e *Expander) Unsupported(markup string) []string {
	e.expansionsMu.RLock()
	defer e.expansionsMu.RUnlock()
	var out []string
	for _, name := range findMacros(markup) {
		if _, ok := e.expansions[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func token(name string) string { return "${" + name + "}" }

// findMacros returns the distinct ${NAME} tokens in s in order of first use.
func findMacros(s string) []string {
	var names []string
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			return names
		}
		s = s[start+2:]
		end := strings.IndexByte(s, '}')
		if end == -1 {
			return names
		}
		name := s[:end]
		s = s[end+1:]
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
}

// registerDefaultMacros registers the IAB OpenRTB 2.5 substitution macros
// plus timestamps.
func (e *Expander) registerDefaultMacros() {
	e.expansions["AUCTION_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.AuctionID, nil
	}

	// one bid per bidder and unit, so auction, seat and unit identify it
	e.expansions["AUCTION_BID_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.AuctionID + ":" + ctx.Bidder + ":" + ctx.AdUnitID, nil
	}

	e.expansions["AUCTION_IMP_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.AdUnitID, nil
	}

	e.expansions["AUCTION_AD_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.AdUnitID, nil
	}

	e.expansions["AUCTION_SEAT_ID"] = func(ctx *ExpansionContext) (string, error) {
		return ctx.Bidder, nil
	}

	// first price auction: the clearing price is the winning bid
	e.expansions["AUCTION_PRICE"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatFloat(ctx.Price, 'f', -1, 64), nil
	}

	e.expansions["AUCTION_CURRENCY"] = func(ctx *ExpansionContext) (string, error) {
		if ctx.Currency == "" {
			return DefaultCurrency, nil
		}
		return ctx.Currency, nil
	}

	e.expansions["TIMESTAMP"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatInt(ctx.Timestamp.Unix(), 10), nil
	}

	e.expansions["TIMESTAMP_MS"] = func(ctx *ExpansionContext) (string, error) {
		return strconv.FormatInt(ctx.Timestamp.UnixMilli(), 10), nil
	}
}
