package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/ayatose/refbako/config"
	"golang.org/x/net/html"
)

// ScrapedReference is an unpersisted candidate extracted from a design
// gallery page or entered manually, awaiting ingestion.
type ScrapedReference struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
	Source      string `json:"source"`
}

// ScraperService extracts candidate references from third-party design
// galleries. A failing source contributes zero candidates and never fails
// the other sources.
type ScraperService interface {
	Sources() []string
	IsKnownSource(source string) bool
	Scrape(ctx context.Context, source string, limit int) ([]ScrapedReference, error)
	ScrapeAll(ctx context.Context, limitPerSite int) []ScrapedReference
}

// galleryRule describes how to pull candidates out of one gallery's markup
type galleryRule struct {
	displayName string
	pageURL     string
	urlPrefix   string
	isItem      func(*html.Node) bool
	isTitle     func(*html.Node) bool
	isDesc      func(*html.Node) bool
}

// SourceLandBook, SourceMuzli, and SourceAwwwards are the accepted scrape
// source parameters; SourceAll fans out to every gallery.
const (
	SourceLandBook = "landbook"
	SourceMuzli    = "muzli"
	SourceAwwwards = "awwwards"
	SourceAll      = "all"
)

var galleryRules = map[string]galleryRule{
	SourceLandBook: {
		displayName: "Land-book",
		pageURL:     "https://land-book.com/",
		urlPrefix:   "https://land-book.com",
		isItem:      hasClass("gallery-item"),
		isTitle:     hasClass("gallery-item-title"),
	},
	SourceMuzli: {
		displayName: "Muzli",
		pageURL:     "https://muzli.space/",
		urlPrefix:   "https://muzli.space",
		isItem:      hasAttr("data-testid", "post-item"),
		isTitle:     anyOf(isElement("h3"), isElement("h2"), hasClass("title")),
		isDesc:      anyOf(hasClass("description"), hasClass("excerpt"), isElement("p")),
	},
	SourceAwwwards: {
		displayName: "Awwwards",
		pageURL:     "https://www.awwwards.com/websites/",
		urlPrefix:   "https://www.awwwards.com",
		isItem:      hasClass("submission-wrapper"),
		isTitle:     hasClass("submission-title"),
		isDesc:      hasClass("submission-description"),
	},
}

// ScraperServiceImpl implements ScraperService over plain HTTP page fetches
type ScraperServiceImpl struct {
	config *config.ScraperConfig
	client *http.Client
}

// NewScraperService creates a new scraper service instance
func NewScraperService(cfg *config.ScraperConfig) ScraperService {
	return &ScraperServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Sources lists the scrapeable gallery names
func (s *ScraperServiceImpl) Sources() []string {
	return []string{SourceLandBook, SourceMuzli, SourceAwwwards}
}

// IsKnownSource reports whether source names a scrapeable gallery or "all"
func (s *ScraperServiceImpl) IsKnownSource(source string) bool {
	if source == SourceAll {
		return true
	}
	_, ok := galleryRules[source]
	return ok
}

// Scrape extracts up to limit candidates from one gallery
func (s *ScraperServiceImpl) Scrape(ctx context.Context, source string, limit int) ([]ScrapedReference, error) {
	rule, ok := galleryRules[source]
	if !ok {
		return nil, fmt.Errorf("unknown scrape source: %s", source)
	}
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rule.pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rule.pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gallery %s returned status %d", rule.displayName, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s page: %w", rule.displayName, err)
	}

	return extractCandidates(doc, rule, limit), nil
}

// ScrapeAll scrapes every gallery concurrently. Per-source failures are
// logged and skipped; the remaining sources' candidates are still returned.
func (s *ScraperServiceImpl) ScrapeAll(ctx context.Context, limitPerSite int) []ScrapedReference {
	var (
		mu      sync.Mutex
		results []ScrapedReference
		wg      sync.WaitGroup
	)

	for _, source := range s.Sources() {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			candidates, err := s.Scrape(ctx, source, limitPerSite)
			if err != nil {
				log.Printf("scrape of %s failed: %v", source, err)
				return
			}
			mu.Lock()
			results = append(results, candidates...)
			mu.Unlock()
		}(source)
	}

	wg.Wait()
	return results
}

// extractCandidates walks the parsed document collecting gallery items
func extractCandidates(doc *html.Node, rule galleryRule, limit int) []ScrapedReference {
	var results []ScrapedReference
	for _, item := range findAll(doc, rule.isItem, limit) {
		title := strings.TrimSpace(textContent(findFirst(item, rule.isTitle)))
		link := findFirst(item, isElement("a"))
		if title == "" || link == nil {
			continue
		}

		href := attrValue(link, "href")
		if href == "" {
			continue
		}
		if !strings.HasPrefix(href, "http") {
			href = rule.urlPrefix + href
		}

		candidate := ScrapedReference{
			Title:  title,
			URL:    href,
			Source: rule.displayName,
		}
		if rule.isDesc != nil {
			candidate.Description = strings.TrimSpace(textContent(findFirst(item, rule.isDesc)))
		}
		if img := findFirst(item, isElement("img")); img != nil {
			candidate.ImageURL = attrValue(img, "src")
		}
		results = append(results, candidate)
	}
	return results
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, field := range strings.Fields(attrValue(n, "class")) {
			if field == class {
				return true
			}
		}
		return false
	}
}

func hasAttr(key, value string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrValue(n, key) == value
	}
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func anyOf(matchers ...func(*html.Node) bool) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, m := range matchers {
			if m(n) {
				return true
			}
		}
		return false
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll collects up to limit nodes matching the predicate in document order
func findAll(root *html.Node, match func(*html.Node) bool, limit int) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if limit > 0 && len(found) >= limit {
			return
		}
		if match(n) {
			found = append(found, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// findFirst returns the first node matching the predicate, or nil
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match == nil {
		return nil
	}
	nodes := findAll(root, match, 1)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// textContent concatenates all text nodes under n
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// MockScraperService implements ScraperService for testing
type MockScraperService struct {
	Candidates map[string][]ScrapedReference
	Errs       map[string]error
}

// NewMockScraperService creates a new mock scraper service
func NewMockScraperService() *MockScraperService {
	return &MockScraperService{
		Candidates: make(map[string][]ScrapedReference),
		Errs:       make(map[string]error),
	}
}

func (m *MockScraperService) Sources() []string {
	return []string{SourceLandBook, SourceMuzli, SourceAwwwards}
}

func (m *MockScraperService) IsKnownSource(source string) bool {
	if source == SourceAll {
		return true
	}
	for _, s := range m.Sources() {
		if s == source {
			return true
		}
	}
	return false
}

func (m *MockScraperService) Scrape(_ context.Context, source string, limit int) ([]ScrapedReference, error) {
	if err := m.Errs[source]; err != nil {
		return nil, err
	}
	candidates := m.Candidates[source]
	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (m *MockScraperService) ScrapeAll(ctx context.Context, limitPerSite int) []ScrapedReference {
	var results []ScrapedReference
	for _, source := range m.Sources() {
		candidates, err := m.Scrape(ctx, source, limitPerSite)
		if err != nil {
			continue
		}
		results = append(results, candidates...)
	}
	return results
}
