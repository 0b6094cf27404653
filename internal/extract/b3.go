// Package extract fetches the B3 index composition page and turns its table
// into domain records.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"ibovtech/internal/config"
	"ibovtech/internal/domain"
)

// headerCode is the text of the code column header; rows that repeat the
// header inside tbody are skipped.
const headerCode = "Código"

var errNoTable = errors.New("no table found on page")

// Extractor produces one collection batch per call.
type Extractor interface {
	Fetch(ctx context.Context) (domain.CollectionBatch, error)
}

var _ Extractor = (*B3Extractor)(nil)

// B3Extractor scrapes the composition table from the B3 index page,
// following pagination links when the page has them. It never retries: a
// failed fetch is reported and the caller decides what to do.
type B3Extractor struct {
	url       string
	userAgent string
	maxPages  int
	client    *http.Client
	limiter   *rate.Limiter
	loc       *time.Location
	now       func() time.Time
	log       *slog.Logger
}

// NewB3Extractor creates a B3Extractor from the extract configuration.
// Collection dates are computed in loc.
func NewB3Extractor(cfg config.ExtractConfig, loc *time.Location, logger *slog.Logger) *B3Extractor {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &B3Extractor{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		maxPages:  maxPages,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		loc:       loc,
		now:       time.Now,
		log:       logger.With("component", "extract"),
	}
}

// WithClock replaces the clock used to stamp the collection date.
func (e *B3Extractor) WithClock(now func() time.Time) *B3Extractor {
	e.now = now
	return e
}

// CollectionDate returns midnight of t's calendar day in loc.
func CollectionDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Fetch downloads every page of the composition table and returns the rows as
// a batch dated today. A page that cannot be fetched or parsed, or a run that
// yields zero rows, fails with *domain.FetchError.
func (e *B3Extractor) Fetch(ctx context.Context) (domain.CollectionBatch, error) {
	batch := domain.CollectionBatch{
		CollectionDate: CollectionDate(e.now(), e.loc),
		SourceURL:      e.url,
	}

	visited := make(map[string]struct{})
	pageURL := e.url
	rowOffset := 0

	for page := 1; page <= e.maxPages && pageURL != ""; page++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return domain.CollectionBatch{}, &domain.FetchError{URL: pageURL, Err: err}
		}
		visited[pageURL] = struct{}{}

		doc, err := e.get(ctx, pageURL)
		if err != nil {
			return domain.CollectionBatch{}, &domain.FetchError{URL: pageURL, Err: err}
		}

		records, invalid, err := ParseTable(doc, rowOffset)
		if err != nil {
			return domain.CollectionBatch{}, &domain.FetchError{URL: pageURL, Err: err}
		}
		for _, v := range invalid {
			e.log.Warn("dropping row", "page", page, "error", v)
		}
		rowOffset += len(records) + len(invalid)

		for _, r := range records {
			batch.Records = append(batch.Records, domain.EnrichedRecord{CompositionRecord: r})
		}
		e.log.Info("page extracted", "page", page, "rows", len(records), "dropped", len(invalid))

		next, err := nextPage(doc, pageURL)
		if err != nil {
			return domain.CollectionBatch{}, &domain.FetchError{URL: pageURL, Err: err}
		}
		if _, seen := visited[next]; seen {
			break
		}
		pageURL = next
	}

	if len(batch.Records) == 0 {
		return domain.CollectionBatch{}, &domain.FetchError{URL: e.url, Err: errors.New("page yielded zero rows")}
	}
	return batch, nil
}

func (e *B3Extractor) get(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// ParseTable extracts composition rows from the first table in doc. Columns
// are: code, company, share class, theoretical quantity, weight. Rows with
// fewer than five cells (headers, totals, the reducer line) are skipped
// silently; rows with unparseable numbers are returned as validation errors.
// rowOffset is added to row numbers so errors are unique across pages.
func ParseTable(doc *goquery.Document, rowOffset int) ([]domain.CompositionRecord, []*domain.ValidationError, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, errNoTable
	}

	var (
		records []domain.CompositionRecord
		invalid []*domain.ValidationError
	)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		text := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }

		code, company := text(0), text(1)
		if code == "" || company == "" || code == headerCode {
			return
		}
		rowNum := rowOffset + len(records) + len(invalid) + 1

		qty, err := ParseQuantity(text(3))
		if err != nil {
			invalid = append(invalid, &domain.ValidationError{Row: rowNum, Symbol: code, Reason: err.Error()})
			return
		}
		weight, err := ParseWeight(text(4))
		if err != nil {
			invalid = append(invalid, &domain.ValidationError{Row: rowNum, Symbol: code, Reason: err.Error()})
			return
		}

		records = append(records, domain.CompositionRecord{
			Symbol:              code,
			Company:             company,
			ShareClass:          text(2),
			TheoreticalQuantity: qty,
			WeightPercent:       weight,
		})
	})
	return records, invalid, nil
}

// nextPage returns the absolute URL of the rel="next" pagination link, or ""
// when the page has none or it is disabled.
func nextPage(doc *goquery.Document, base string) (string, error) {
	link := doc.Find(`a[rel="next"]`).First()
	if link.Length() == 0 || link.HasClass("disabled") || link.AttrOr("aria-disabled", "") == "true" {
		return "", nil
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "#") {
		return "", nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parsing next link %q: %w", href, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
