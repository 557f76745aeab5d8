// Package websearch provides a web_search tool backed by the DuckDuckGo
// HTML endpoint. Results are scraped, cleaned and rendered as plain text
// suitable for feeding back into a conversation.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jivagrisma/ISA-AGENT/tool"
)

// Name is the tool name the model is instructed to call.
const Name = "web_search"

const defaultEndpoint = "https://html.duckduckgo.com/html/"

const defaultMaxResults = 5

// Searcher performs web searches and renders the results as text.
type Searcher struct {
	httpc      *http.Client
	endpoint   string
	maxResults int
}

// Option configures the searcher.
type Option func(*Searcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Searcher) {
		if c != nil {
			s.httpc = c
		}
	}
}

// WithEndpoint overrides the search endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *Searcher) {
		if endpoint != "" {
			s.endpoint = endpoint
		}
	}
}

// WithMaxResults caps the number of rendered results.
func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// NewSearcher creates a searcher with sane defaults.
func NewSearcher(opts ...Option) *Searcher {
	s := &Searcher{
		httpc:      &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Result is one search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Search runs the query and returns the top hits.
func (s *Searcher) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("websearch: query cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint,
		strings.NewReader(url.Values{"q": {query}}.Encode()))
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "isa-agent/1.0")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("websearch: parse response: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(results) >= s.maxResults {
			return false
		}
		link := sel.Find(".result__a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())
		if title == "" {
			return true
		}
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: snippet,
		})
		return true
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// Render formats results for a tool response message.
func Render(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return b.String()
}

// NewTool wraps the searcher as a registrable tool.
func NewTool(opts ...Option) *tool.Tool {
	s := NewSearcher(opts...)
	return &tool.Tool{
		Name:        Name,
		Description: "Search the web for current information. Arguments: {\"query\": \"...\"}",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "The search query", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			results, err := s.Search(ctx, query)
			if err != nil {
				return "", err
			}
			return Render(query, results), nil
		},
	}
}
