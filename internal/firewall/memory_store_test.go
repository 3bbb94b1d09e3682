package firewall

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletguard/walletguard/internal/pagination"
)

func seedRecord(id string, ts time.Time) *Record {
	return &Record{
		RequestID:   id,
		Timestamp:   ts,
		Chain:       ChainTron,
		ToAddress:   "addr_" + id,
		Amount:      100,
		RiskScore:   30,
		RiskLevel:   LevelLow,
		Decision:    DecisionAllow,
		ReasonCodes: []string{ReasonNoSignificantRisk},
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := seedRecord("req1", time.Now().UTC())
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "req1")
	require.NoError(t, err)
	assert.Equal(t, rec.RequestID, got.RequestID)
	assert.Equal(t, rec.ReasonCodes, got.ReasonCodes)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, seedRecord("req1", time.Now().UTC())))

	got, err := store.Get(ctx, "req1")
	require.NoError(t, err)
	got.TxHash = "tampered"
	got.ReasonCodes[0] = "tampered"

	fresh, err := store.Get(ctx, "req1")
	require.NoError(t, err)
	assert.Empty(t, fresh.TxHash)
	assert.Equal(t, []string{ReasonNoSignificantRisk}, fresh.ReasonCodes)
}

func TestMemoryStoreUpsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ts := time.Now().UTC()

	rec := seedRecord("req1", ts)
	require.NoError(t, store.Put(ctx, rec))

	// Finalize the same record
	rec.Forced = true
	rec.TxHash = "tx_req1"
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "req1")
	require.NoError(t, err)
	assert.True(t, got.Forced)
	assert.Equal(t, "tx_req1", got.TxHash)

	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1, "upsert must not create a second row")
}

func TestMemoryStoreListRecentOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.Put(ctx, seedRecord("old", base.Add(-2*time.Minute))))
	require.NoError(t, store.Put(ctx, seedRecord("mid", base.Add(-time.Minute))))
	require.NoError(t, store.Put(ctx, seedRecord("new", base)))

	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].RequestID)
	assert.Equal(t, "mid", records[1].RequestID)
	assert.Equal(t, "old", records[2].RequestID)

	records, err = store.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemoryStoreListRecentTieBreak(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ts := time.Now().UTC()

	// Identical timestamps: later insertion wins
	require.NoError(t, store.Put(ctx, seedRecord("first", ts)))
	require.NoError(t, store.Put(ctx, seedRecord("second", ts)))

	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].RequestID)
	assert.Equal(t, "first", records[1].RequestID)
}

func TestMemoryStoreCursorPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("req%d", i)
		require.NoError(t, store.Put(ctx, seedRecord(id, base.Add(time.Duration(i)*time.Second))))
	}

	// First page
	page, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "req4", page[0].RequestID)
	assert.Equal(t, "req3", page[1].RequestID)

	// Continue from the last item of the first page
	cursor := pagination.Encode(page[1].Timestamp, page[1].RequestID)
	page, err = store.ListRecent(ctx, 2, WithCursor(cursor))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "req2", page[0].RequestID)
	assert.Equal(t, "req1", page[1].RequestID)

	cursor = pagination.Encode(page[1].Timestamp, page[1].RequestID)
	page, err = store.ListRecent(ctx, 2, WithCursor(cursor))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "req0", page[0].RequestID)
}

func TestMemoryStoreLists(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AddAddress(ctx, ListBlacklist, "bbb"))
	require.NoError(t, store.AddAddress(ctx, ListBlacklist, "aaa"))
	require.NoError(t, store.AddAddress(ctx, ListWhitelist, "ccc"))

	// Duplicate add is a no-op
	require.NoError(t, store.AddAddress(ctx, ListBlacklist, "aaa"))

	members, err := store.ListAddresses(ctx, ListBlacklist)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, members, "members sorted for stable output")

	m, err := store.Membership(ctx, "aaa")
	require.NoError(t, err)
	assert.True(t, m.Blacklisted)
	assert.False(t, m.Whitelisted)

	require.NoError(t, store.RemoveAddress(ctx, ListBlacklist, "aaa"))
	require.NoError(t, store.RemoveAddress(ctx, ListBlacklist, "never_there"))

	m, err = store.Membership(ctx, "aaa")
	require.NoError(t, err)
	assert.False(t, m.Blacklisted)

	err = store.AddAddress(ctx, "GREYLIST", "x")
	assert.True(t, errors.Is(err, ErrInvalidListKind))
}
