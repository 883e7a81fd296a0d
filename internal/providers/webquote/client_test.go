package webquote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/pkg/config"
	"github.com/heliosquant/helios/pkg/httputil"
	"github.com/heliosquant/helios/pkg/logger"
)

func testHTTPClient() *httputil.Client {
	cfg := &config.Config{}
	cfg.Providers.CallTimeout = 5 * time.Second
	return httputil.New(cfg, logger.New(cfg))
}

const historyPage = `
<html><body>
<table class="history">
<tr><th>Date</th><th>Close</th></tr>
<tr><td>2024-01-17</td><td>1,230.50</td></tr>
<tr><td>2024-01-16</td><td>1,210.00</td></tr>
<tr><td>2024-01-15</td><td>1,195.25</td></tr>
</table>
</body></html>`

func TestPriceSeries_ParsesHistoryTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote/history" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("symbol") != "AAA" {
			http.Error(w, "unknown symbol", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, historyPage)
	}))
	defer srv.Close()

	c := NewClient(testHTTPClient(), srv.URL, nil)

	points, err := c.PriceSeries(context.Background(),
		"AAA",
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("PriceSeries() error = %v", err)
	}

	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	// Ascending dates for point-in-time consumers
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			t.Errorf("points not ascending at %d: %v then %v", i, points[i-1].Date, points[i].Date)
		}
	}
	if points[0].Close != 1195.25 {
		t.Errorf("first close = %v, want 1195.25", points[0].Close)
	}
	if points[2].Close != 1230.50 {
		t.Errorf("last close = %v, want 1230.50", points[2].Close)
	}
}

func TestPriceSeries_WindowFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historyPage)
	}))
	defer srv.Close()

	c := NewClient(testHTTPClient(), srv.URL, nil)

	points, err := c.PriceSeries(context.Background(),
		"AAA",
		time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("PriceSeries() error = %v", err)
	}
	if len(points) != 1 || points[0].Close != 1210.00 {
		t.Errorf("got %v, want single 2024-01-16 close of 1210", points)
	}
}

func TestPriceSeries_EmptyTableIsGap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table class="history"></table></body></html>`)
	}))
	defer srv.Close()

	c := NewClient(testHTTPClient(), srv.URL, nil)

	_, err := c.PriceSeries(context.Background(),
		"ZZZ",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	if !contracts.IsDataGap(err) {
		t.Errorf("error = %v, want data gap", err)
	}
}

func TestQuote_ParsesSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="quote-summary">
				<span class="last-price">$2,540.75</span>
				<span class="as-of-date">2024-03-08</span>
			</div>
		</body></html>`)
	}))
	defer srv.Close()

	c := NewClient(testHTTPClient(), srv.URL, nil)

	point, err := c.Quote(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if point.Close != 2540.75 {
		t.Errorf("Close = %v, want 2540.75", point.Close)
	}
	if !point.Date.Equal(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want 2024-03-08", point.Date)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1,234.56", 1234.56, false},
		{"$99.50", 99.50, false},
		{"  250  ", 250, false},
		{"n/a", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseNumber(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseNumber(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
