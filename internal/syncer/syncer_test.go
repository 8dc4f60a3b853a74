package syncer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laserline/engraver/internal/feed"
	"github.com/laserline/engraver/internal/orders"
	"github.com/laserline/engraver/internal/rules"
	"github.com/laserline/engraver/internal/store"
)

func newTestSyncer(t *testing.T, feedContent string) (*Syncer, *store.Store, string) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	location := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(location, []byte(feedContent), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(feed.NewReader(), st, rules.NewEngine(st), location, logger)
	return s, st, location
}

func rewriteFeed(t *testing.T, location, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(location, []byte(content), 0o644))
}

func loadRules(t *testing.T, st *store.Store, set *rules.Set) {
	t.Helper()
	require.NoError(t, st.ReplaceRules(context.Background(), set))
}

const twoOrderFeed = "Order ID,SKU,Buyer Name,Customization\n" +
	"A-1,MUG-RED,Anna Rossi,Engrave: Anna\n" +
	"A-2,PLATE,Luca Bianchi,\n"

func TestSync_FreshFeed(t *testing.T) {
	s, st, _ := newTestSyncer(t, twoOrderFeed)
	ctx := context.Background()

	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.TotalParsed)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 0, report.Duplicates)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 0, report.Skipped)

	o, err := st.GetOrder(ctx, "A-1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "MUG-RED", o.SKU)
	assert.Equal(t, "Anna Rossi", o.BuyerName)
	assert.Equal(t, "Engrave: Anna", o.CustomField)
	assert.Equal(t, orders.StatusPending, o.Front.Status)
	assert.Equal(t, orders.StatusNotRequired, o.Retro.Status)
}

func TestSync_SecondRunIsIdempotent(t *testing.T) {
	s, st, _ := newTestSyncer(t, twoOrderFeed)
	ctx := context.Background()

	_, err := s.Sync(ctx)
	require.NoError(t, err)

	// Side state accumulated between syncs must survive the re-sync.
	ok, err := st.AcquireSide(ctx, "A-1", orders.SideFront)
	require.NoError(t, err)
	require.True(t, ok)
	done, err := st.CompleteSide(ctx, "A-1", orders.SideFront, time.Now())
	require.NoError(t, err)
	require.True(t, done)

	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 0, report.Deleted)

	o, err := st.GetOrder(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPrinted, o.Front.Status, "re-sync must not touch side state")
	assert.NotNil(t, o.Front.ProcessedAt)
}

func TestSync_ReconcilingDelete(t *testing.T) {
	s, st, location := newTestSyncer(t, twoOrderFeed)
	ctx := context.Background()

	_, err := s.Sync(ctx)
	require.NoError(t, err)

	rewriteFeed(t, location, "Order ID,SKU,Buyer Name\nA-1,MUG-RED,Anna Rossi\n")

	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Deleted)

	gone, err := st.GetOrder(ctx, "A-2")
	require.NoError(t, err)
	assert.Nil(t, gone, "order absent from the feed must be deleted")

	kept, err := st.GetOrder(ctx, "A-1")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestSync_SkipsRecordsWithoutOrderID(t *testing.T) {
	s, st, _ := newTestSyncer(t,
		"Order ID,SKU,Buyer Name\n"+
			"A-1,MUG,Anna\n"+
			",PLATE,Luca\n")
	ctx := context.Background()

	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalParsed)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Skipped)

	list, err := st.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSync_IntegrityGuard(t *testing.T) {
	// A feed whose headers map to nothing parses records but yields no
	// order activity at all. The sync must stop before deleting anything.
	s, st, location := newTestSyncer(t, twoOrderFeed)
	ctx := context.Background()

	_, err := s.Sync(ctx)
	require.NoError(t, err)

	rewriteFeed(t, location, "colA,colB\nx,y\nz,w\n")

	_, err = s.Sync(ctx)
	require.Error(t, err)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 2, ie.TotalParsed)

	list, err := st.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2, "integrity failure must leave the order set intact")
}

func TestSync_EmptyFeedDeletesAll(t *testing.T) {
	s, st, location := newTestSyncer(t, twoOrderFeed)
	ctx := context.Background()

	_, err := s.Sync(ctx)
	require.NoError(t, err)

	rewriteFeed(t, location, "")

	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalParsed)
	assert.Equal(t, 2, report.Deleted, "an empty feed is a valid snapshot: everything shipped")

	list, err := st.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSync_RetroPromotion(t *testing.T) {
	s, st, _ := newTestSyncer(t,
		"Order ID,SKU,Buyer Name\n"+
			"A-1,MUG-RED,Anna\n"+
			"A-2,MUG-RED,Luca\n"+
			"A-3,PLATE,Mia\n")
	ctx := context.Background()

	loadRules(t, st, &rules.Set{
		Templates: []rules.TemplateRule{
			{SKUPattern: "MUG", TemplateFile: "mug-fronte.svg", Priority: 0},
			{SKUPattern: "MUG", TemplateFile: "mug-retro.svg", Priority: 0},
			{SKUPattern: "PLATE", TemplateFile: "plate.svg", Priority: 0},
		},
	})

	report, err := s.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Added)
	assert.Equal(t, 2, report.RetroPromoted, "both MUG orders promoted, PLATE untouched")

	for _, id := range []string{"A-1", "A-2"} {
		o, err := st.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusPending, o.Retro.Status, "order %s", id)
	}

	plate, err := st.GetOrder(ctx, "A-3")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusNotRequired, plate.Retro.Status)
}

func TestSync_RetroPromotionIsIdempotent(t *testing.T) {
	s, st, _ := newTestSyncer(t, "Order ID,SKU\nA-1,MUG\n")
	ctx := context.Background()

	loadRules(t, st, &rules.Set{
		Templates: []rules.TemplateRule{
			{SKUPattern: "MUG", TemplateFile: "mug-retro.svg"},
		},
	})

	first, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RetroPromoted)

	second, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RetroPromoted, "already-promoted retro must not count again")
}

func TestSync_UnreachableFeed(t *testing.T) {
	s, _, location := newTestSyncer(t, twoOrderFeed)
	require.NoError(t, os.Remove(location))

	_, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, feed.IsUnreachable(err))
}
