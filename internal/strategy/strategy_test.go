package strategy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/ratelimit"
	"market-data-gateway/internal/types"
)

var allTags = []types.ProviderTag{types.ProviderYahoo, types.ProviderAlphaVantage, types.ProviderMock}

type fakeCosts struct {
	free     map[types.ProviderTag]bool
	exceeded map[types.ProviderTag]bool
}

func (f fakeCosts) IsFree(tag types.ProviderTag) bool   { return f.free[tag] }
func (f fakeCosts) Exceeded(tag types.ProviderTag) bool { return f.exceeded[tag] }

func defaultCosts() fakeCosts {
	return fakeCosts{
		free: map[types.ProviderTag]bool{
			types.ProviderYahoo: true,
			types.ProviderMock:  true,
		},
		exceeded: map[types.ProviderTag]bool{},
	}
}

func healthCtx(healthy map[types.ProviderTag]bool) Context {
	health := make(map[types.ProviderTag]models.ProviderHealth, len(healthy))
	for tag, ok := range healthy {
		health[tag] = models.ProviderHealth{IsHealthy: ok}
	}
	return Context{Operation: OpQuote, Health: health}
}

func TestNew_UnknownName(t *testing.T) {
	_, err := New("weighted", types.ProviderYahoo, "", allTags, nil)
	assert.Error(t, err)
}

func TestPrimary(t *testing.T) {
	s, err := New("primary", types.ProviderAlphaVantage, "", allTags, nil)
	require.NoError(t, err)

	tag, err := s.Select(healthCtx(map[types.ProviderTag]bool{types.ProviderAlphaVantage: false}))
	require.NoError(t, err)
	assert.Equal(t, types.ProviderAlphaVantage, tag, "primary ignores health")
	assert.Equal(t, types.ProviderAlphaVantage, s.Fallback())
}

func TestFallback(t *testing.T) {
	t.Run("healthy primary wins", func(t *testing.T) {
		s, err := New("fallback", types.ProviderAlphaVantage, types.ProviderYahoo, allTags, defaultCosts())
		require.NoError(t, err)

		tag, err := s.Select(healthCtx(map[types.ProviderTag]bool{types.ProviderAlphaVantage: true}))
		require.NoError(t, err)
		assert.Equal(t, types.ProviderAlphaVantage, tag)
	})

	t.Run("unhealthy primary yields secondary", func(t *testing.T) {
		s, err := New("fallback", types.ProviderAlphaVantage, types.ProviderYahoo, allTags, defaultCosts())
		require.NoError(t, err)

		tag, err := s.Select(healthCtx(map[types.ProviderTag]bool{types.ProviderAlphaVantage: false}))
		require.NoError(t, err)
		assert.Equal(t, types.ProviderYahoo, tag)
	})

	t.Run("no secondary defaults to a free variant", func(t *testing.T) {
		s, err := New("fallback", types.ProviderAlphaVantage, "", allTags, defaultCosts())
		require.NoError(t, err)

		tag, err := s.Select(healthCtx(map[types.ProviderTag]bool{types.ProviderAlphaVantage: false}))
		require.NoError(t, err)
		assert.Equal(t, types.ProviderYahoo, tag)
	})

	t.Run("unmonitored primary counts healthy", func(t *testing.T) {
		s, err := New("fallback", types.ProviderAlphaVantage, types.ProviderYahoo, allTags, defaultCosts())
		require.NoError(t, err)

		tag, err := s.Select(Context{})
		require.NoError(t, err)
		assert.Equal(t, types.ProviderAlphaVantage, tag)
	})
}

func TestRoundRobin(t *testing.T) {
	t.Run("cycles healthy variants", func(t *testing.T) {
		s, err := New("roundrobin", types.ProviderYahoo, "", allTags, nil)
		require.NoError(t, err)

		ctx := healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        true,
			types.ProviderAlphaVantage: true,
			types.ProviderMock:         true,
		})

		var picks []types.ProviderTag
		for i := 0; i < 6; i++ {
			tag, err := s.Select(ctx)
			require.NoError(t, err)
			picks = append(picks, tag)
		}
		assert.Equal(t, picks[0], picks[3])
		assert.Equal(t, picks[1], picks[4])
		assert.NotEqual(t, picks[0], picks[1])
	})

	t.Run("skips unhealthy variants", func(t *testing.T) {
		s, err := New("roundrobin", types.ProviderYahoo, "", allTags, nil)
		require.NoError(t, err)

		ctx := healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        true,
			types.ProviderAlphaVantage: false,
			types.ProviderMock:         true,
		})

		for i := 0; i < 10; i++ {
			tag, err := s.Select(ctx)
			require.NoError(t, err)
			assert.NotEqual(t, types.ProviderAlphaVantage, tag)
		}
	})

	t.Run("no healthy variant", func(t *testing.T) {
		s, err := New("roundrobin", types.ProviderYahoo, "", allTags, nil)
		require.NoError(t, err)

		_, err = s.Select(healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        false,
			types.ProviderAlphaVantage: false,
			types.ProviderMock:         false,
		}))
		assert.True(t, types.IsKind(err, types.ErrNoHealthyProvider))
	})

	t.Run("concurrent selection stays balanced", func(t *testing.T) {
		s, err := New("roundrobin", types.ProviderYahoo, "", allTags, nil)
		require.NoError(t, err)

		ctx := healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        true,
			types.ProviderAlphaVantage: true,
			types.ProviderMock:         true,
		})

		var mu sync.Mutex
		counts := map[types.ProviderTag]int{}
		var wg sync.WaitGroup
		for i := 0; i < 300; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tag, err := s.Select(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				counts[tag]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		for tag, n := range counts {
			assert.Equal(t, 100, n, "tag %s", tag)
		}
	})
}

func TestCostOptimized(t *testing.T) {
	newCO := func(costs CostReader) Strategy {
		s, err := New("costoptimized", types.ProviderAlphaVantage, "", allTags, costs)
		require.NoError(t, err)
		return s
	}

	t.Run("prefers healthy free variant", func(t *testing.T) {
		s := newCO(defaultCosts())
		tag, err := s.Select(healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        true,
			types.ProviderAlphaVantage: true,
		}))
		require.NoError(t, err)
		assert.Equal(t, types.ProviderYahoo, tag)
	})

	t.Run("premium when free unhealthy", func(t *testing.T) {
		s := newCO(defaultCosts())
		ctx := healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        false,
			types.ProviderMock:         false,
			types.ProviderAlphaVantage: true,
		})
		ctx.RateLimits = map[types.ProviderTag]ratelimit.Status{
			types.ProviderAlphaVantage: {MinuteLimit: 5, MinuteRemaining: 3, DayLimit: 500, DayRemaining: 100},
		}

		tag, err := s.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.ProviderAlphaVantage, tag)
	})

	t.Run("premium without quota is skipped", func(t *testing.T) {
		s := newCO(defaultCosts())
		ctx := healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        false,
			types.ProviderMock:         false,
			types.ProviderAlphaVantage: true,
		})
		ctx.RateLimits = map[types.ProviderTag]ratelimit.Status{
			types.ProviderAlphaVantage: {MinuteLimit: 5, MinuteRemaining: 0, DayLimit: 500, DayRemaining: 100},
		}

		tag, err := s.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.Fallback(), tag)
	})

	t.Run("premium over budget is skipped", func(t *testing.T) {
		costs := defaultCosts()
		costs.exceeded[types.ProviderAlphaVantage] = true
		s := newCO(costs)

		ctx := healthCtx(map[types.ProviderTag]bool{
			types.ProviderYahoo:        false,
			types.ProviderMock:         false,
			types.ProviderAlphaVantage: true,
		})

		tag, err := s.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.Fallback(), tag)
	})
}
