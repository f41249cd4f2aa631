package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bidEntry(id int64, price, size string) BookEntry {
	return BookEntry{Symbol: "XBTUSD", Side: Side_Bid, OrderID: id, Price: d(price), Size: d(size)}
}

func askEntry(id int64, price, size string) BookEntry {
	return BookEntry{Symbol: "XBTUSD", Side: Side_Ask, OrderID: id, Price: d(price), Size: d(size)}
}

var now = time.Date(2020, 2, 2, 0, 30, 43, 0, time.UTC)

func TestBookEngine_DiffsBeforePartialAreDiscarded(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	for _, action := range []Action{Action_Insert, Action_Update, Action_Delete} {
		update, err := engine.Apply("XBTUSD", action, []BookEntry{bidEntry(1, "100", "5")}, now, now)

		assert.NoError(t, err, "pre-partial diff must be dropped silently")
		assert.Nil(t, update, "pre-partial diff must produce no update")
		assert.False(t, engine.Bootstrapped("XBTUSD"))
	}

	snapshot := engine.Snapshot("XBTUSD", 0)
	require.NotNil(t, snapshot)
	assert.Empty(t, snapshot.Bids, "no state change before partial")
	assert.Empty(t, snapshot.Asks, "no state change before partial")
}

func TestBookEngine_PartialBootstrapsBook(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	update, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{
		bidEntry(1, "100", "5"),
		bidEntry(2, "99", "3"),
		askEntry(3, "101", "7"),
	}, now, now)

	require.NoError(t, err)
	require.NotNil(t, update)
	assert.True(t, update.Forced, "bootstrap must be a forced update")
	assert.Empty(t, update.Delta.Bids, "a forced update carries no delta")
	assert.Empty(t, update.Delta.Asks, "a forced update carries no delta")
	assert.True(t, engine.Bootstrapped("XBTUSD"))

	snapshot := engine.Snapshot("XBTUSD", 0)
	require.NotNil(t, snapshot)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}, {Price: d("99"), Size: d("3")}}, snapshot.Bids, "bids sorted best first")
	assert.Equal(t, []PriceLevel{{Price: d("101"), Size: d("7")}}, snapshot.Asks)
}

func TestBookEngine_PartialReplacesPriorState(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)
	_, err = engine.Apply("XBTUSD", Action_Insert, []BookEntry{bidEntry(2, "99", "3")}, now, now)
	require.NoError(t, err)

	update, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{askEntry(9, "102", "4")}, now, now)
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.True(t, update.Forced)

	snapshot := engine.Snapshot("XBTUSD", 0)
	assert.Empty(t, snapshot.Bids, "prior state must be discarded")
	assert.Equal(t, []PriceLevel{{Price: d("102"), Size: d("4")}}, snapshot.Asks)

	// The old ids are gone with the old book.
	_, err = engine.Apply("XBTUSD", Action_Update, []BookEntry{{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 2, Size: d("1")}}, now, now)
	assert.ErrorIs(t, err, ErrUnknownOrderID)
}

func TestBookEngine_InsertAppendsDelta(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)

	update, err := engine.Apply("XBTUSD", Action_Insert, []BookEntry{bidEntry(2, "99", "3"), askEntry(3, "101", "2")}, now, now)
	require.NoError(t, err)
	require.NotNil(t, update)

	assert.False(t, update.Forced)
	assert.Equal(t, []PriceLevel{{Price: d("99"), Size: d("3")}}, update.Delta.Bids)
	assert.Equal(t, []PriceLevel{{Price: d("101"), Size: d("2")}}, update.Delta.Asks)
}

func TestBookEngine_UpdateChangesSizeOnly(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5"), bidEntry(2, "99", "3")}, now, now)
	require.NoError(t, err)

	// Updates carry no price; it is resolved through the id index.
	update, err := engine.Apply("XBTUSD", Action_Update, []BookEntry{
		{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 2, Size: d("7")},
	}, now, now)

	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, []PriceLevel{{Price: d("99"), Size: d("7")}}, update.Delta.Bids)

	snapshot := engine.Snapshot("XBTUSD", 0)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}, {Price: d("99"), Size: d("7")}}, snapshot.Bids)
}

func TestBookEngine_DeleteRemovesExactlyOneLevel(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5"), bidEntry(2, "99", "3")}, now, now)
	require.NoError(t, err)

	update, err := engine.Apply("XBTUSD", Action_Delete, []BookEntry{
		{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 1},
	}, now, now)

	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: decimal.Zero}}, update.Delta.Bids)

	snapshot := engine.Snapshot("XBTUSD", 0)
	assert.Equal(t, []PriceLevel{{Price: d("99"), Size: d("3")}}, snapshot.Bids)

	// Deleting the same id again is an unknown-id failure.
	_, err = engine.Apply("XBTUSD", Action_Delete, []BookEntry{
		{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 1},
	}, now, now)
	assert.ErrorIs(t, err, ErrUnknownOrderID)
}

func TestBookEngine_UnknownOrderIdLeavesBookUntouched(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)

	// One good entry, one bad. Nothing must be applied.
	update, err := engine.Apply("XBTUSD", Action_Update, []BookEntry{
		{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 1, Size: d("9")},
		{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 42, Size: d("2")},
	}, now, now)

	assert.ErrorIs(t, err, ErrUnknownOrderID)
	assert.Nil(t, update)

	snapshot := engine.Snapshot("XBTUSD", 0)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}}, snapshot.Bids, "failed message must not partially apply")
}

func TestBookEngine_IndexConsistency(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{
		bidEntry(1, "100", "5"), bidEntry(2, "99", "3"), askEntry(3, "101", "7"),
	}, now, now)
	require.NoError(t, err)

	_, err = engine.Apply("XBTUSD", Action_Insert, []BookEntry{askEntry(4, "102", "1")}, now, now)
	require.NoError(t, err)
	_, err = engine.Apply("XBTUSD", Action_Update, []BookEntry{{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 2, Size: d("8")}}, now, now)
	require.NoError(t, err)
	_, err = engine.Apply("XBTUSD", Action_Delete, []BookEntry{{Symbol: "XBTUSD", Side: Side_Ask, OrderID: 3}}, now, now)
	require.NoError(t, err)

	book := engine.books["XBTUSD"]
	for _, side := range []*bookSide{book.bids, book.asks} {
		for id, price := range side.orders {
			_, found := side.levels.Get(price)
			assert.True(t, found, "index entry for order %d points at a dead price %s", id, price)
		}
	}
}

// The canonical end-to-end scenario: bootstrap, insert, update, delete.
func TestBookEngine_Scenario(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	update, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)
	assert.True(t, update.Forced)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}}, engine.Snapshot("XBTUSD", 0).Bids)

	update, err = engine.Apply("XBTUSD", Action_Insert, []BookEntry{bidEntry(2, "99", "3")}, now, now)
	require.NoError(t, err)
	assert.False(t, update.Forced)
	assert.Equal(t, []PriceLevel{{Price: d("99"), Size: d("3")}}, update.Delta.Bids)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}, {Price: d("99"), Size: d("3")}}, engine.Snapshot("XBTUSD", 0).Bids)

	update, err = engine.Apply("XBTUSD", Action_Update, []BookEntry{{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 2, Size: d("7")}}, now, now)
	require.NoError(t, err)
	assert.Equal(t, []PriceLevel{{Price: d("99"), Size: d("7")}}, update.Delta.Bids)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}, {Price: d("99"), Size: d("7")}}, engine.Snapshot("XBTUSD", 0).Bids)

	update, err = engine.Apply("XBTUSD", Action_Delete, []BookEntry{{Symbol: "XBTUSD", Side: Side_Bid, OrderID: 1}}, now, now)
	require.NoError(t, err)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: decimal.Zero}}, update.Delta.Bids)
	assert.Equal(t, []PriceLevel{{Price: d("99"), Size: d("7")}}, engine.Snapshot("XBTUSD", 0).Bids)
}

func TestBookEngine_UnexpectedActionIsDropped(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)

	update, err := engine.Apply("XBTUSD", Action("settle"), []BookEntry{bidEntry(2, "98", "1")}, now, now)
	assert.NoError(t, err)
	assert.Nil(t, update)
	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}}, engine.Snapshot("XBTUSD", 0).Bids)
}

func TestBookEngine_ResetIsIdempotent(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)

	engine.Reset()
	engine.Reset()

	assert.False(t, engine.Bootstrapped("XBTUSD"))
	assert.Equal(t, 0, engine.OpenBooks())

	update, err := engine.Apply("XBTUSD", Action_Insert, []BookEntry{bidEntry(2, "99", "3")}, now, now)
	assert.NoError(t, err)
	assert.Nil(t, update, "gate must be re-armed after reset")

	update, err = engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(3, "98", "2")}, now, now)
	require.NoError(t, err)
	assert.True(t, update.Forced)
	assert.Equal(t, []PriceLevel{{Price: d("98"), Size: d("2")}}, engine.Snapshot("XBTUSD", 0).Bids)
}

func TestBookEngine_SymbolsAreIndependent(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "100", "5")}, now, now)
	require.NoError(t, err)

	// A failure on one symbol must not disturb another.
	_, err = engine.Apply("ETHUSD", Action_Partial, []BookEntry{{Symbol: "ETHUSD", Side: Side_Bid, OrderID: 1, Price: d("200"), Size: d("4")}}, now, now)
	require.NoError(t, err)
	_, err = engine.Apply("ETHUSD", Action_Delete, []BookEntry{{Symbol: "ETHUSD", Side: Side_Bid, OrderID: 77}}, now, now)
	assert.ErrorIs(t, err, ErrUnknownOrderID)

	assert.Equal(t, []PriceLevel{{Price: d("100"), Size: d("5")}}, engine.Snapshot("XBTUSD", 0).Bids)
	assert.Equal(t, 2, engine.OpenBooks())
}

func TestBookEngine_SnapshotLimit(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{
		bidEntry(1, "100", "5"), bidEntry(2, "99", "3"), bidEntry(3, "98", "1"),
	}, now, now)
	require.NoError(t, err)

	snapshot := engine.Snapshot("XBTUSD", 2)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Bids, 2)
	assert.Equal(t, d("100"), snapshot.Bids[0].Price, "limit keeps the best levels")

	assert.Nil(t, engine.Snapshot("ETHUSD", 2), "unknown symbol has no snapshot")
}

func TestBookEngine_EquivalentPricesCollapse(t *testing.T) {
	engine := NewBookEngine("BITMEX")

	// 99 and 99.0 are the same price level regardless of representation.
	_, err := engine.Apply("XBTUSD", Action_Partial, []BookEntry{bidEntry(1, "99", "5")}, now, now)
	require.NoError(t, err)
	_, err = engine.Apply("XBTUSD", Action_Insert, []BookEntry{bidEntry(2, "99.0", "7")}, now, now)
	require.NoError(t, err)

	snapshot := engine.Snapshot("XBTUSD", 0)
	require.Len(t, snapshot.Bids, 1)
	assert.True(t, snapshot.Bids[0].Size.Equal(d("7")), "last write wins at a price level")
}
