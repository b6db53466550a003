package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-data-gateway/internal/models"
)

func testTTLConfig() TTLConfig {
	cfg := DefaultTTLConfig()
	cfg.Quote = 50 * time.Millisecond
	return cfg
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()

	t.Run("get within ttl returns value", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 100*time.Millisecond))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		exists, err := store.Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("get after expiry misses", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", []byte("v"), 10*time.Millisecond))
		time.Sleep(20 * time.Millisecond)

		_, err := store.Get(ctx, "gone")
		assert.True(t, IsNotFound(err))
	})

	t.Run("delete removes value", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "del", []byte("v"), time.Minute))
		require.NoError(t, store.Delete(ctx, "del"))

		_, err := store.Get(ctx, "del")
		assert.True(t, IsNotFound(err))
	})
}

func TestMarketCache_Keys(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()

	t.Run("facade scope", func(t *testing.T) {
		mc := NewMarketCache(store, "", DefaultTTLConfig(), nil)
		assert.Equal(t, "quote:AAPL", mc.Key(DataQuote, "AAPL"))
	})

	t.Run("provider scope", func(t *testing.T) {
		mc := NewMarketCache(store, "yahoo", DefaultTTLConfig(), nil)
		assert.Equal(t, "yahoo:quote:AAPL", mc.Key(DataQuote, "AAPL"))
	})

	t.Run("historical range key", func(t *testing.T) {
		mc := NewMarketCache(store, "", DefaultTTLConfig(), nil)
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
		key := mc.Key(DataHistorical, HistoryKeyParts("TSLA", start, end, "daily")...)
		assert.Equal(t, "historical:TSLA:2024-01-01:2024-06-30:DAILY", key)
	})
}

func TestMarketCache_QuoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()
	mc := NewMarketCache(store, "", testTTLConfig(), nil)

	quote := &models.Quote{
		Symbol:        "AAPL",
		CurrentPrice:  decimal.NewFromFloat(271.49),
		PreviousClose: decimal.NewFromFloat(265),
		AsOf:          time.Now().UTC().Truncate(time.Second),
	}
	quote.RecomputeChange()

	t.Run("miss before set", func(t *testing.T) {
		assert.Nil(t, mc.GetQuote(ctx, "AAPL"))
	})

	t.Run("hit after set, field-equal", func(t *testing.T) {
		mc.SetQuote(ctx, "AAPL", quote)

		got := mc.GetQuote(ctx, "AAPL")
		require.NotNil(t, got)
		assert.Equal(t, "AAPL", got.Symbol)
		assert.True(t, got.CurrentPrice.Equal(quote.CurrentPrice))
		assert.True(t, got.Change.Equal(quote.Change))
	})

	t.Run("stale tier outlives hot tier", func(t *testing.T) {
		mc.SetQuote(ctx, "AAPL", quote)
		time.Sleep(60 * time.Millisecond)

		assert.Nil(t, mc.GetQuote(ctx, "AAPL"))
		stale := mc.StaleQuote(ctx, "AAPL")
		require.NotNil(t, stale)
		assert.True(t, stale.CurrentPrice.Equal(quote.CurrentPrice))
	})

	t.Run("remove clears both tiers", func(t *testing.T) {
		mc.SetQuote(ctx, "AAPL", quote)
		mc.Remove(ctx, DataQuote, "AAPL")

		assert.Nil(t, mc.GetQuote(ctx, "AAPL"))
		assert.Nil(t, mc.StaleQuote(ctx, "AAPL"))
	})
}

func TestMarketCache_HistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()
	mc := NewMarketCache(store, "alphavantage", DefaultTTLConfig(), nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	bars := []*models.HistoricalBar{
		{
			Symbol: "TSLA",
			Date:   start,
			Open:   decimal.NewFromInt(240),
			High:   decimal.NewFromInt(250),
			Low:    decimal.NewFromInt(238),
			Close:  decimal.NewFromInt(247),
			Volume: decimal.NewFromInt(1_000_000),
		},
	}

	mc.SetHistory(ctx, "TSLA", start, end, "daily", bars)

	got := mc.GetHistory(ctx, "TSLA", start, end, "daily")
	require.Len(t, got, 1)
	assert.True(t, got[0].Close.Equal(bars[0].Close))

	// Different range is a different key.
	assert.Nil(t, mc.GetHistory(ctx, "TSLA", start, end.AddDate(0, 1, 0), "daily"))
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, NewCacheError("get", key, ErrCodeConnectionFailed, errors.New("backend down"))
}
func (failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return NewCacheError("set", key, ErrCodeConnectionFailed, errors.New("backend down"))
}
func (failingStore) Delete(ctx context.Context, keys ...string) error {
	return NewCacheError("del", "", ErrCodeConnectionFailed, errors.New("backend down"))
}
func (failingStore) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
func (failingStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}
func (failingStore) Ping(ctx context.Context) error { return errors.New("backend down") }
func (failingStore) Close() error                   { return nil }

func TestMarketCache_BackendFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	mc := NewMarketCache(failingStore{}, "", DefaultTTLConfig(), nil)

	assert.NotPanics(t, func() {
		mc.SetQuote(ctx, "AAPL", &models.Quote{Symbol: "AAPL"})
	})
	assert.Nil(t, mc.GetQuote(ctx, "AAPL"))
	assert.Nil(t, mc.StaleQuote(ctx, "AAPL"))
}

func TestRedisStore_WithMock(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	t.Run("get returns stored bytes", func(t *testing.T) {
		mock.ExpectGet("quote:AAPL").SetVal(`{"symbol":"AAPL"}`)

		got, err := store.Get(ctx, "quote:AAPL")
		require.NoError(t, err)
		assert.JSONEq(t, `{"symbol":"AAPL"}`, string(got))
	})

	t.Run("nil reply maps to not-found", func(t *testing.T) {
		mock.ExpectGet("quote:MISSING").RedisNil()

		_, err := store.Get(ctx, "quote:MISSING")
		assert.True(t, IsNotFound(err))
	})

	t.Run("set forwards ttl", func(t *testing.T) {
		mock.ExpectSet("quote:AAPL", []byte("x"), 15*time.Minute).SetVal("OK")

		assert.NoError(t, store.Set(ctx, "quote:AAPL", []byte("x"), 15*time.Minute))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
