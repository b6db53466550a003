package strategy

import (
	"fmt"
	"strings"
	"sync/atomic"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/ratelimit"
	"market-data-gateway/internal/types"
)

// Operation names the facade call a selection serves.
type Operation string

const (
	OpQuote        Operation = "quote"
	OpQuotes       Operation = "quotes"
	OpHistory      Operation = "history"
	OpFundamentals Operation = "fundamentals"
	OpProfile      Operation = "profile"
	OpSearch       Operation = "search"
)

// Context carries the per-request state a strategy may consult.
type Context struct {
	Symbol     string
	Operation  Operation
	Health     map[types.ProviderTag]models.ProviderHealth
	RateLimits map[types.ProviderTag]ratelimit.Status
}

func (c Context) healthy(tag types.ProviderTag) bool {
	h, ok := c.Health[tag]
	// Unknown to the monitor means unmonitored, not broken.
	return !ok || h.IsHealthy
}

// hasQuota reports whether a variant has tokens left in both windows.
// Variants without a limiter entry are unconstrained.
func (c Context) hasQuota(tag types.ProviderTag) bool {
	st, ok := c.RateLimits[tag]
	if !ok {
		return true
	}
	if st.MinuteLimit > 0 && st.MinuteRemaining <= 0 {
		return false
	}
	if st.DayLimit > 0 && st.DayRemaining <= 0 {
		return false
	}
	return true
}

// CostReader is the read-only cost view cost-aware strategies consult.
type CostReader interface {
	IsFree(types.ProviderTag) bool
	Exceeded(types.ProviderTag) bool
}

// Strategy picks a provider variant per request.
type Strategy interface {
	Select(ctx Context) (types.ProviderTag, error)
	Fallback() types.ProviderTag
	Name() string
}

// New constructs a strategy by name over the available variants in their
// enumeration order.
func New(name string, primary, secondary types.ProviderTag, available []types.ProviderTag, costs CostReader) (Strategy, error) {
	switch strings.ToLower(name) {
	case "primary":
		return &Primary{primary: primary}, nil
	case "fallback":
		return &Fallback{primary: primary, secondary: secondary, available: available, costs: costs}, nil
	case "roundrobin", "round_robin", "round-robin":
		return &RoundRobin{available: available}, nil
	case "costoptimized", "cost_optimized", "cost-optimized":
		return &CostOptimized{
			available: available,
			costs:     costs,
			fallback:  &Fallback{primary: primary, secondary: secondary, available: available, costs: costs},
		}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// Primary always selects the configured primary variant.
type Primary struct {
	primary types.ProviderTag
}

func (s *Primary) Select(Context) (types.ProviderTag, error) { return s.primary, nil }
func (s *Primary) Fallback() types.ProviderTag               { return s.primary }
func (s *Primary) Name() string                              { return "primary" }

// Fallback selects the primary while it is healthy, then the configured
// secondary, then the first free variant.
type Fallback struct {
	primary   types.ProviderTag
	secondary types.ProviderTag
	available []types.ProviderTag
	costs     CostReader
}

func (s *Fallback) Select(ctx Context) (types.ProviderTag, error) {
	if ctx.healthy(s.primary) {
		return s.primary, nil
	}
	return s.Fallback(), nil
}

func (s *Fallback) Fallback() types.ProviderTag {
	if s.secondary != "" {
		return s.secondary
	}
	if s.costs != nil {
		for _, tag := range s.available {
			if tag != s.primary && s.costs.IsFree(tag) {
				return tag
			}
		}
	}
	for _, tag := range s.available {
		if tag != s.primary {
			return tag
		}
	}
	return s.primary
}

func (s *Fallback) Name() string { return "fallback" }

// RoundRobin cycles a single atomic index over the variants that are healthy
// at selection time. The healthy set is snapshotted per call so a variant
// flapping mid-cycle cannot starve the others.
type RoundRobin struct {
	available []types.ProviderTag
	index     uint64
}

func (s *RoundRobin) Select(ctx Context) (types.ProviderTag, error) {
	healthy := make([]types.ProviderTag, 0, len(s.available))
	for _, tag := range s.available {
		if ctx.healthy(tag) {
			healthy = append(healthy, tag)
		}
	}
	if len(healthy) == 0 {
		return "", types.NewProviderError(types.ErrNoHealthyProvider, "", ctx.Symbol, "no healthy provider available")
	}

	n := atomic.AddUint64(&s.index, 1) - 1
	return healthy[n%uint64(len(healthy))], nil
}

func (s *RoundRobin) Fallback() types.ProviderTag {
	if len(s.available) == 0 {
		return ""
	}
	return s.available[0]
}

func (s *RoundRobin) Name() string { return "roundrobin" }

// CostOptimized prefers healthy free variants in enumeration order, then a
// healthy premium variant with remaining quota and budget, then whatever the
// fallback policy yields.
type CostOptimized struct {
	available []types.ProviderTag
	costs     CostReader
	fallback  *Fallback
}

func (s *CostOptimized) Select(ctx Context) (types.ProviderTag, error) {
	for _, tag := range s.available {
		if s.costs.IsFree(tag) && ctx.healthy(tag) {
			return tag, nil
		}
	}
	for _, tag := range s.available {
		if s.costs.IsFree(tag) {
			continue
		}
		if ctx.healthy(tag) && ctx.hasQuota(tag) && !s.costs.Exceeded(tag) {
			return tag, nil
		}
	}
	return s.fallback.Fallback(), nil
}

func (s *CostOptimized) Fallback() types.ProviderTag { return s.fallback.Fallback() }
func (s *CostOptimized) Name() string                { return "costoptimized" }
