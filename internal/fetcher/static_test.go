package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/pricetracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const productPage = `<!doctype html>
<html><head><title>Pressure Cooker 5L</title><script>var price = "₹1";</script></head>
<body>
  <div class="RoomGridRow">
    <span class="RoomName">Deluxe King Pool View</span>
    <div class="PriceBox"><span style="font-size: 24px">₹13,442</span></div>
  </div>
  <p>Ships <small>in 2 days</small></p>
</body></html>`

func TestStaticSessionQueries(t *testing.T) {
	sess, err := NewStaticSession("https://www.agoda.com/h", productPage)
	require.NoError(t, err)

	title, err := sess.Title()
	require.NoError(t, err)
	assert.Equal(t, "Pressure Cooker 5L", title)

	names, err := sess.QueryAll(".RoomName")
	require.NoError(t, err)
	require.Len(t, names, 1)
	text, err := names[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Deluxe King Pool View", text)
	assert.Equal(t, "span", names[0].TagName())

	row, ok := names[0].Parent()
	require.True(t, ok)
	cls, _ := row.Attr("class")
	assert.Equal(t, "RoomGridRow", cls)

	prices, err := row.QueryAll("xpath:.//span[contains(., '₹')]")
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 24.0, prices[0].FontSize())

	small, err := sess.QueryAll("small")
	require.NoError(t, err)
	require.Len(t, small, 1)
	assert.InDelta(t, 13.33, small[0].FontSize(), 0.01)
}

func TestStaticSessionVisibleTextSkipsScripts(t *testing.T) {
	sess, err := NewStaticSession("https://x", productPage)
	require.NoError(t, err)
	text, err := sess.VisibleText()
	require.NoError(t, err)
	assert.Contains(t, text, "Deluxe King Pool View ₹13,442")
	assert.NotContains(t, text, "var price")
}

func TestStaticSessionVisibleTextSeparatesCells(t *testing.T) {
	sess, err := NewStaticSession("https://x", `<html><body><table><tr><td>4</td><td>12,499</td></tr></table><p><span>Qty</span><span>2</span></p></body></html>`)
	require.NoError(t, err)
	text, err := sess.VisibleText()
	require.NoError(t, err)
	assert.Equal(t, "4 12,499 Qty 2", text)
}

func TestStaticSessionCSSGroups(t *testing.T) {
	sess, err := NewStaticSession("https://x", `<html><body>
		<span class="a-price-whole">12,499.</span>
		<div class="PriceBox"><span class="Price__Value">13,442</span></div>
	</body></html>`)
	require.NoError(t, err)

	els, err := sess.QueryAll(".a-price-whole, .Price__Value")
	require.NoError(t, err)
	require.Len(t, els, 2)

	box, err := sess.QueryAll(".PriceBox")
	require.NoError(t, err)
	require.Len(t, box, 1)
	inner, err := box[0].QueryAll(`[class*="Value"]`)
	require.NoError(t, err)
	require.Len(t, inner, 1)
	text, _ := inner[0].Text()
	assert.Equal(t, "13,442", text)
}

func TestStaticSessionEvaluateUnsupported(t *testing.T) {
	sess, err := NewStaticSession("https://x", productPage)
	require.NoError(t, err)
	_, err = sess.Evaluate(`() => document.readyState`)
	assert.ErrorIs(t, err, ErrEvaluateUnsupported)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), 0))
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, SleepContext(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStaticSessionBadSelector(t *testing.T) {
	sess, err := NewStaticSession("https://x", productPage)
	require.NoError(t, err)
	_, err = sess.QueryAll("div[")
	assert.Error(t, err)
	_, err = sess.QueryAll("xpath://div[")
	assert.Error(t, err)
	assert.ErrorIs(t, sess.Screenshot("/tmp/x.png"), ErrScreenshotUnsupported)
}

func TestStaticProviderFallsBackIgnoringQuery(t *testing.T) {
	p := NewStaticProvider()
	p.Add("https://www.agoda.com/hotel?checkIn=2020-01-01", productPage)

	sess, err := p.Load(context.Background(), "https://www.agoda.com/hotel?checkIn=2031-05-08&checkOut=2031-05-09", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.OpenSessions())
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, 0, p.OpenSessions())

	assert.Equal(t, []string{"https://www.agoda.com/hotel?checkIn=2031-05-08&checkOut=2031-05-09"}, p.Loads())

	_, err = p.Load(context.Background(), "https://unknown.example/", LoadOptions{})
	var fe *types.FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestStaticProviderFail(t *testing.T) {
	p := NewStaticProvider()
	p.Fail("https://slow.example/p", types.ErrTimeout)
	_, err := p.Load(context.Background(), "https://slow.example/p", LoadOptions{})
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Equal(t, "timeout", types.Kind(err))
}
