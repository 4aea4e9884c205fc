package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/rs/zerolog"

	"sebsync/internal/adapters/util"
	"sebsync/internal/core/domain/models"
	"sebsync/internal/core/domain/ports"
)

const (
	relNext        = "next"
	relAcquisition = "http://opds-spec.org/acquisition"
	relOpenAccess  = "http://opds-spec.org/acquisition/open-access"

	mimeEpub = "application/epub+zip"

	// maxPages bounds pagination so a feed that links back to itself in a
	// cycle (or an absurdly large catalog) cannot spin forever.
	maxPages = 200
)

// EmailCredentials authenticates as the Standard Ebooks endpoint expects:
// HTTP basic auth with the account email as username and a blank password.
type EmailCredentials struct {
	Email string
}

func (c EmailCredentials) Apply(req *http.Request) {
	req.SetBasicAuth(c.Email, "")
}

// Ensure OPDSCatalog implements CatalogSource
var _ ports.CatalogSource = (*OPDSCatalog)(nil)

// OPDSCatalog reads an OPDS acquisition feed and serves entry downloads.
type OPDSCatalog struct {
	feedURL string
	creds   ports.Credentials
	client  *http.Client
	maxSize int64
	log     zerolog.Logger
}

func NewOPDSCatalog(feedURL string, creds ports.Credentials, maxSize int64, log zerolog.Logger) *OPDSCatalog {
	return &OPDSCatalog{
		feedURL: feedURL,
		creds:   creds,
		client: &http.Client{
			Transport: &util.LoggingTransport{Log: log},
			Timeout:   5 * time.Minute,
		},
		maxSize: maxSize,
		log:     log,
	}
}

// FetchEntries walks the feed and its rel="next" continuations and returns
// every entry in first-seen feed order, deduplicated by identifier. When the
// feed repeats an identifier across pages the instance with the later
// revision wins.
func (c *OPDSCatalog) FetchEntries(ctx context.Context) ([]models.CatalogEntry, error) {
	byID := make(map[string]models.CatalogEntry)
	var order []string

	visited := make(map[string]bool)
	next := c.feedURL
	pages := 0

	for next != "" && !visited[next] && pages < maxPages {
		visited[next] = true
		pages++

		entries, nextURL, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if prev, ok := byID[e.ID]; ok {
				if e.Updated.After(prev.Updated) {
					byID[e.ID] = e
				}
				continue
			}
			byID[e.ID] = e
			order = append(order, e.ID)
		}

		next = nextURL
	}

	c.log.Debug().Int("pages", pages).Int("entries", len(order)).Msg("catalog fetched")

	out := make([]models.CatalogEntry, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, nil
}

func (c *OPDSCatalog) fetchPage(ctx context.Context, pageURL string) ([]models.CatalogEntry, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", &models.TransportError{URL: pageURL, Err: err}
	}
	c.creds.Apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", &models.TransportError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", &models.AuthError{URL: pageURL, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, "", &models.TransportError{URL: pageURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	feed, err := (&atom.Parser{}).Parse(resp.Body)
	if err != nil {
		return nil, "", &models.FeedFormatError{URL: pageURL, Reason: "not a parsable Atom feed", Err: err}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", &models.TransportError{URL: pageURL, Err: err}
	}

	entries := make([]models.CatalogEntry, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		e, err := toCatalogEntry(entry, base)
		if err != nil {
			return nil, "", &models.FeedFormatError{URL: pageURL, Reason: "malformed entry", Err: err}
		}
		entries = append(entries, e)
	}

	// Pagination continuation, if any.
	nextURL := ""
	for _, link := range feed.Links {
		if link.Rel == relNext {
			if ref, err := url.Parse(link.Href); err == nil {
				nextURL = base.ResolveReference(ref).String()
			}
			break
		}
	}

	return entries, nextURL, nil
}

func toCatalogEntry(entry *atom.Entry, base *url.URL) (models.CatalogEntry, error) {
	if entry.ID == "" {
		return models.CatalogEntry{}, fmt.Errorf("entry %q has no identifier", entry.Title)
	}
	if entry.UpdatedParsed == nil {
		return models.CatalogEntry{}, fmt.Errorf("entry %s has no updated timestamp", entry.ID)
	}

	e := models.CatalogEntry{
		ID:      entry.ID,
		Title:   entry.Title,
		Updated: *entry.UpdatedParsed,
	}

	if len(entry.Authors) > 0 {
		e.Author = entry.Authors[0].Name
	}

	// Prefer the EPUB acquisition link; open-access beats paywalled.
	var href string
	for _, link := range entry.Links {
		switch link.Rel {
		case relOpenAccess:
			if href == "" || link.Type == mimeEpub {
				href = link.Href
			}
		case relAcquisition:
			if href == "" {
				href = link.Href
			}
		}
	}
	if href == "" {
		return models.CatalogEntry{}, fmt.Errorf("entry %s has no acquisition link", entry.ID)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return models.CatalogEntry{}, fmt.Errorf("entry %s has an invalid acquisition link: %w", entry.ID, err)
	}
	e.DownloadURL = base.ResolveReference(ref).String()

	return e, nil
}

// DownloadEntry streams the entry's bytes, capped at the configured maximum
// size. Reading past the cap fails the download mid-stream.
func (c *OPDSCatalog) DownloadEntry(ctx context.Context, entry models.CatalogEntry) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.DownloadURL, nil)
	if err != nil {
		return nil, &models.TransportError{URL: entry.DownloadURL, Err: err}
	}
	c.creds.Apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &models.TransportError{URL: entry.DownloadURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &models.TransportError{URL: entry.DownloadURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return &cappedReader{body: resp.Body, remaining: c.maxSize}, nil
}

// cappedReader fails the stream once more than the allowed number of bytes
// has been read, so an oversized file never lands on disk.
type cappedReader struct {
	body      io.ReadCloser
	remaining int64
}

func (r *cappedReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		return n, fmt.Errorf("download exceeds maximum allowed size")
	}
	return n, err
}

func (r *cappedReader) Close() error { return r.body.Close() }
