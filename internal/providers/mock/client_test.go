package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-gateway/internal/models"
	"market-data-gateway/internal/types"
)

func TestClient_Deterministic(t *testing.T) {
	ctx := context.Background()

	t.Run("same seed agrees across instances", func(t *testing.T) {
		a, err := New(42).Quote(ctx, "AAPL")
		require.NoError(t, err)
		b, err := New(42).Quote(ctx, "AAPL")
		require.NoError(t, err)

		assert.True(t, a.CurrentPrice.Equal(b.CurrentPrice))
		assert.True(t, a.Volume.Equal(b.Volume))
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		a, err := New(1).Quote(ctx, "AAPL")
		require.NoError(t, err)
		b, err := New(2).Quote(ctx, "AAPL")
		require.NoError(t, err)

		assert.False(t, a.CurrentPrice.Equal(b.CurrentPrice))
	})

	t.Run("different symbols diverge", func(t *testing.T) {
		a, err := New(1).Quote(ctx, "AAPL")
		require.NoError(t, err)
		b, err := New(1).Quote(ctx, "MSFT")
		require.NoError(t, err)

		assert.False(t, a.CurrentPrice.Equal(b.CurrentPrice))
	})
}

func TestClient_QuoteShape(t *testing.T) {
	q, err := New(7).Quote(context.Background(), "tsla")
	require.NoError(t, err)

	assert.Equal(t, "TSLA", q.Symbol)
	assert.True(t, q.CurrentPrice.IsPositive())
	require.NotNil(t, q.BidPrice)
	require.NotNil(t, q.AskPrice)
	assert.True(t, q.BidPrice.LessThan(*q.AskPrice))
	assert.True(t, q.DayLow.LessThanOrEqual(q.DayHigh))
}

func TestClient_FailureTriggers(t *testing.T) {
	ctx := context.Background()
	client := New(1)

	_, err := client.Quote(ctx, "MISSING1")
	assert.True(t, types.IsKind(err, types.ErrSymbolNotFound))

	_, err = client.Profile(ctx, "ERRUPSTREAM")
	assert.True(t, types.IsKind(err, types.ErrAPIUnavailable))

	quotes, err := client.Quotes(ctx, []string{"AAPL", "MISSINGX"})
	require.NoError(t, err)
	assert.Len(t, quotes, 1, "failed symbols are skipped in batches")
}

func TestClient_HistoryWalk(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	bars, err := New(11).History(context.Background(), "AAPL", start, end, types.IntervalDaily)
	require.NoError(t, err)

	require.Len(t, bars, 10)
	assert.NoError(t, models.ValidateBarSeries(bars))

	// The walk chains: each bar opens at the previous close.
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i].Open.Equal(bars[i-1].Close))
	}
}

func TestClient_AlwaysHealthy(t *testing.T) {
	assert.NoError(t, New(1).IsHealthy(context.Background()))
}

func TestClient_Search(t *testing.T) {
	hits, err := New(1).Search(context.Background(), "acme", 2)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "ACME", hits[0].Symbol)
	assert.GreaterOrEqual(t, hits[0].MatchScore, hits[1].MatchScore)
}
