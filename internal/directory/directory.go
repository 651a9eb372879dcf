// Package directory reads the provider directory and provider publication
// listings from the inspection register's HTML pages.
package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// DefaultBaseURL is the public inspection register.
const DefaultBaseURL = "https://reports.ofsted.gov.uk"

// DefaultRows is the number of providers requested per directory page.
const DefaultRows = 100

// Local area SEND inspections are filed under these register categories.
const (
	level1Type = "3"
	level2Type = "12"
)

// ErrNoBaseURL is returned when the register URL is missing or relative.
var ErrNoBaseURL = errors.New("directory base url must be absolute")

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config controls which register is read.
type Config struct {
	BaseURL string
	Rows    int
}

// Client lists providers and publications by fetching register pages.
// Publications are returned in page order, which the register keeps newest
// first.
type Client struct {
	fetcher Fetcher
	base    *url.URL
	rows    int
}

// New builds a Client.
func New(fetcher Fetcher, cfg Config) (*Client, error) {
	if fetcher == nil {
		return nil, errors.New("directory fetcher is required")
	}
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse directory base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrNoBaseURL, raw)
	}
	rows := cfg.Rows
	if rows <= 0 {
		rows = DefaultRows
	}
	return &Client{fetcher: fetcher, base: base, rows: rows}, nil
}

// Rows returns the configured page size.
func (c *Client) Rows() int { return c.rows }

// SearchURL returns the directory search URL for page. A zero page size uses
// the client's configured rows.
func (c *Client) SearchURL(page inspection.PageState) string {
	rows := page.Rows
	if rows <= 0 {
		rows = c.rows
	}
	u := *c.base
	u.Path = path.Join("/", c.base.Path, "search")
	// The register expects every filter key present, even when empty, in
	// this order.
	u.RawQuery = strings.Join([]string{
		"q=", "location=", "lat=", "lon=", "radius=",
		"level_1_types=" + level1Type,
		"level_2_types%5B%5D=" + level2Type,
		"start=" + strconv.Itoa(page.Start),
		"rows=" + strconv.Itoa(rows),
	}, "&")
	return u.String()
}

// ListProviders fetches one directory page. An empty result ends pagination.
func (c *Client) ListProviders(ctx context.Context, page inspection.PageState) ([]inspection.ProviderEntry, error) {
	target := c.SearchURL(page)
	body, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch directory page %s: %w", target, err)
	}
	return ParseProviders(bytes.NewReader(body), c.base)
}

// ListPublications fetches a provider page and lists its publications in
// page order.
func (c *Client) ListPublications(ctx context.Context, provider inspection.ProviderEntry) ([]inspection.PublicationEntry, error) {
	body, err := c.fetcher.Fetch(ctx, provider.Link)
	if err != nil {
		return nil, fmt.Errorf("fetch provider page %s: %w", provider.Link, err)
	}
	base, err := url.Parse(provider.Link)
	if err != nil || !base.IsAbs() {
		base = c.base
	}
	return ParsePublications(bytes.NewReader(body), base)
}

// ParseProviders extracts provider entries from a directory page. Every
// anchor linking to a /provider/ path is an entry; its last path segment is
// the provider identifier. Repeated identifiers keep the first anchor.
func ParseProviders(r io.Reader, base *url.URL) ([]inspection.ProviderEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse directory page: %w", err)
	}

	var out []inspection.ProviderEntry
	seen := make(map[string]struct{})
	doc.Find(`a[href*="/provider/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		id := lastSegment(href)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		name := strings.TrimSpace(s.Text())
		out = append(out, inspection.ProviderEntry{
			Identifier:     id,
			DisplayName:    name,
			NormalizedName: NormalizeName(name),
			Link:           resolve(base, href),
		})
	})
	return out, nil
}

// ParsePublications extracts publication links from a provider page. The
// descriptor is the visually hidden span text, falling back to the anchor
// text.
func ParsePublications(r io.Reader, base *url.URL) ([]inspection.PublicationEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse provider page: %w", err)
	}

	var out []inspection.PublicationEntry
	doc.Find("a.publication-link").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		descriptor := strings.TrimSpace(s.Find("span.nonvisual").First().Text())
		if descriptor == "" {
			descriptor = strings.TrimSpace(s.Text())
		}
		out = append(out, inspection.PublicationEntry{
			DescriptorText:  strings.Join(strings.Fields(descriptor), " "),
			SourceReference: resolve(base, href),
		})
	})
	return out, nil
}

func lastSegment(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
