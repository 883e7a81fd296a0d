package webquote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/heliosquant/helios/internal/contracts"
	"github.com/heliosquant/helios/pkg/httputil"
	"github.com/heliosquant/helios/pkg/logger"
)

// Client scrapes daily closes from a public quote site. It is the
// fallback contracts.PriceProvider for tickers with no stored history.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new quote site client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// PriceSeries fetches the date-ordered closes for a ticker by paging
// through the site's daily history table
func (c *Client) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]contracts.PricePoint, error) {
	var points []contracts.PricePoint

	for page := 1; page <= 100; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pagePoints, hasMore, err := c.fetchHistoryPage(ctx, ticker, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch history page %d for %s: %w", page, ticker, err)
		}

		done := false
		for _, p := range pagePoints {
			if p.Date.After(end) {
				continue
			}
			if p.Date.Before(start) {
				done = true
				break
			}
			points = append(points, p)
		}
		if done || !hasMore {
			break
		}
	}

	if len(points) == 0 {
		return nil, &contracts.DataGapError{Ticker: ticker, Reason: "no quotes on source site"}
	}

	// Pages arrive newest first; callers expect ascending dates
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	if c.logger != nil {
		c.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"count":  len(points),
		}).Debug("Fetched quote history")
	}
	return points, nil
}

// fetchHistoryPage parses one page of the daily history table
func (c *Client) fetchHistoryPage(ctx context.Context, ticker string, page int) ([]contracts.PricePoint, bool, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("page", strconv.Itoa(page))

	html, err := c.fetchHTML(ctx, "/quote/history", params)
	if err != nil {
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var points []contracts.PricePoint
	doc.Find("table.history tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header or spacer row
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil {
			return
		}
		closePrice, err := parseNumber(cells.Eq(1).Text())
		if err != nil || closePrice <= 0 {
			return
		}

		points = append(points, contracts.PricePoint{Date: date, Close: closePrice})
	})

	hasMore := doc.Find(".pager .next").Length() > 0
	return points, hasMore, nil
}

// Quote returns the latest close shown on the ticker's summary page
func (c *Client) Quote(ctx context.Context, ticker string) (contracts.PricePoint, error) {
	params := url.Values{}
	params.Set("symbol", ticker)

	html, err := c.fetchHTML(ctx, "/quote", params)
	if err != nil {
		return contracts.PricePoint{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return contracts.PricePoint{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	priceText := doc.Find(".quote-summary .last-price").First().Text()
	closePrice, err := parseNumber(priceText)
	if err != nil || closePrice <= 0 {
		return contracts.PricePoint{}, &contracts.DataGapError{Ticker: ticker, Reason: "no quote on source site"}
	}

	dateText := strings.TrimSpace(doc.Find(".quote-summary .as-of-date").First().Text())
	date, err := time.Parse("2006-01-02", dateText)
	if err != nil {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	return contracts.PricePoint{Date: date, Close: closePrice}, nil
}

// fetchHTML issues one GET and returns the body
func (c *Client) fetchHTML(ctx context.Context, path string, params url.Values) (string, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

// parseNumber strips thousands separators and currency marks
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	return strconv.ParseFloat(s, 64)
}
