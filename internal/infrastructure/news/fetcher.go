package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

// Fetcher crawls one topic index page for headline links and pulls the main
// text of each linked article. It stays on the index page's host and never
// follows more than one level of links.
type Fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBody    int64
}

func NewFetcher(requestsPerSecond float64) *Fetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxBody:    4 << 20,
	}
}

func (f *Fetcher) LatestArticles(ctx context.Context, indexURL string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse index url", err)
	}

	root, err := f.fetchHTML(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch index page: %w", err)
	}

	links := headlineLinks(root, base)
	if len(links) > limit {
		links = links[:limit]
	}

	articles := make([]domain.Article, 0, len(links))
	for _, link := range links {
		node, err := f.fetchHTML(ctx, link)
		if err != nil {
			// One broken article must not sink the whole topic.
			continue
		}
		title, body := extractMainText(node)
		if strings.TrimSpace(body) == "" {
			continue
		}
		articles = append(articles, domain.Article{
			URL:   link,
			Title: title,
			Body:  body,
		})
	}
	return articles, nil
}

func (f *Fetcher) fetchHTML(ctx context.Context, pageURL string) (*html.Node, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s status: %s", pageURL, resp.Status)
	}

	node, err := html.Parse(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return node, nil
}

// headlineLinks collects same-host anchors whose link text looks like a
// headline rather than site chrome. Order follows document order and
// duplicates are dropped.
func headlineLinks(root *html.Node, base *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			text := strings.TrimSpace(collectText(n))
			if target, ok := resolveHeadline(base, href, text); ok {
				if _, dup := seen[target]; !dup {
					seen[target] = struct{}{}
					out = append(out, target)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func resolveHeadline(base *url.URL, href, text string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	// Short anchor text is navigation, not a headline.
	if len([]rune(text)) < 25 {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	target := base.ResolveReference(ref)
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", false
	}
	if target.Host != base.Host {
		return "", false
	}
	if target.Path == "" || target.Path == "/" || target.Path == base.Path {
		return "", false
	}
	target.Fragment = ""
	return target.String(), true
}

// extractMainText pulls the page title and the concatenated paragraph text,
// skipping layout regions that never hold article copy.
func extractMainText(root *html.Node) (title, body string) {
	var paragraphs []string
	var h1 string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer", "aside", "form", "noscript":
				return
			case "title":
				if title == "" {
					title = strings.TrimSpace(collectText(n))
				}
			case "h1":
				if h1 == "" {
					h1 = strings.TrimSpace(collectText(n))
				}
			case "p":
				if text := strings.TrimSpace(collectText(n)); text != "" {
					paragraphs = append(paragraphs, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if h1 != "" {
		title = h1
	}
	return title, strings.Join(paragraphs, "\n\n")
}

func collectText(n *html.Node) string {
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
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
