package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"LegisImport/internal/domain"
	"LegisImport/internal/ports"
)

// IndexScanner crawls the legislature's published document index and
// lists the downloadable record files of one category.
type IndexScanner struct {
	client *http.Client
}

var _ ports.IndexSource = (*IndexScanner)(nil)

// NewIndexScanner wires an HTTP client; defaults to a 20s timeout.
func NewIndexScanner(client *http.Client) *IndexScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &IndexScanner{client: client}
}

// List fetches the index page and extracts every linked record file.
func (s *IndexScanner) List(ctx context.Context, category, indexURL string) ([]domain.RemoteFile, error) {
	doc, err := s.fetchDocument(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", category, err)
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index url %s: %w", indexURL, err)
	}

	var files []domain.RemoteFile
	seen := map[string]struct{}{}

	doc.Find("a[href]").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".xml") {
			return
		}

		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			return
		}
		absolute := base.ResolveReference(ref).String()
		if _, ok := seen[absolute]; ok {
			return
		}
		seen[absolute] = struct{}{}

		files = append(files, domain.RemoteFile{
			Name:     path.Base(ref.Path),
			URL:      absolute,
			Category: category,
		})
	})

	return files, nil
}

func (s *IndexScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "LegisImport/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	return doc, nil
}
