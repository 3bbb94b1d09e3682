//go:build integration

package firewall

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletguard/walletguard/internal/pagination"
	"github.com/walletguard/walletguard/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	rec := &Record{
		RequestID:   "pgreq1",
		Timestamp:   time.Now().UTC().Truncate(time.Microsecond),
		Chain:       ChainEthereum,
		FromAddress: "0xfrom",
		ToAddress:   "0xdest",
		Amount:      150000,
		RiskScore:   70,
		RiskLevel:   LevelHigh,
		Decision:    DecisionRequireConfirm,
		ReasonCodes: []string{ReasonLargeAmount},
	}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "pgreq1")
	require.NoError(t, err)
	assert.Equal(t, rec.RequestID, got.RequestID)
	assert.Equal(t, rec.Chain, got.Chain)
	assert.Equal(t, rec.FromAddress, got.FromAddress)
	assert.Equal(t, rec.RiskScore, got.RiskScore)
	assert.Equal(t, rec.ReasonCodes, got.ReasonCodes)
	assert.False(t, got.Executed())
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestPostgresStoreUpsertFinalizesOnly(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	rec := &Record{
		RequestID:   "pgreq2",
		Timestamp:   time.Now().UTC().Truncate(time.Microsecond),
		Chain:       ChainTron,
		ToAddress:   "addr",
		Amount:      10,
		RiskScore:   100,
		RiskLevel:   LevelBlocked,
		Decision:    DecisionBlock,
		ReasonCodes: []string{ReasonBlacklistHit},
	}
	require.NoError(t, store.Put(ctx, rec))

	rec.Forced = true
	rec.TxHash = "tx_pgreq2"
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "pgreq2")
	require.NoError(t, err)
	assert.True(t, got.Forced)
	assert.Equal(t, "tx_pgreq2", got.TxHash)
	assert.Equal(t, DecisionBlock, got.Decision)

	records, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPostgresStoreListRecentPagination(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Put(ctx, &Record{
			RequestID:   fmt.Sprintf("pg%d", i),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Chain:       ChainTron,
			ToAddress:   "addr",
			Amount:      10,
			RiskScore:   30,
			RiskLevel:   LevelLow,
			Decision:    DecisionAllow,
			ReasonCodes: []string{ReasonNoSignificantRisk},
		}))
	}

	page, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "pg4", page[0].RequestID)
	assert.Equal(t, "pg2", page[2].RequestID)

	cursor := pagination.Encode(page[2].Timestamp, page[2].RequestID)
	page, err = store.ListRecent(ctx, 3, WithCursor(cursor))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "pg1", page[0].RequestID)
	assert.Equal(t, "pg0", page[1].RequestID)
}

func TestPostgresStoreLists(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.AddAddress(ctx, ListBlacklist, "bad"))
	require.NoError(t, store.AddAddress(ctx, ListBlacklist, "bad")) // idempotent
	require.NoError(t, store.AddAddress(ctx, ListWhitelist, "good"))

	m, err := store.Membership(ctx, "bad")
	require.NoError(t, err)
	assert.True(t, m.Blacklisted)
	assert.False(t, m.Whitelisted)

	members, err := store.ListAddresses(ctx, ListBlacklist)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, members)

	require.NoError(t, store.RemoveAddress(ctx, ListBlacklist, "bad"))
	require.NoError(t, store.RemoveAddress(ctx, ListBlacklist, "never_there"))

	m, err = store.Membership(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, m.Blacklisted)
}

func TestPostgresStoreBackedService(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	svc := NewService(NewEngine(DefaultThresholds()), NewPostgresStore(db), nil)
	ctx := context.Background()

	require.NoError(t, svc.AddAddress(ctx, ListBlacklist, "bad_addr"))

	_, result, err := svc.CheckTransaction(ctx, &TxRequest{
		Chain: ChainTron, ToAddress: "bad_addr", Amount: 500,
	})
	require.NoError(t, err)
	require.Equal(t, DecisionBlock, result.Decision)

	receipt, err := svc.Execute(ctx, result.RequestID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, receipt.Status)

	receipt, err = svc.Execute(ctx, result.RequestID, true)
	require.NoError(t, err)
	assert.Equal(t, StatusForcedLogged, receipt.Status)
	assert.Equal(t, "tx_"+result.RequestID, receipt.TxHash)

	// Replay survives the round trip through the database
	again, err := svc.Execute(ctx, result.RequestID, false)
	require.NoError(t, err)
	assert.Equal(t, receipt.Status, again.Status)
	assert.Equal(t, receipt.TxHash, again.TxHash)
}
