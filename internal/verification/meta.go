package verification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Tolerant of attribute order: content may appear before or after the name.
var (
	metaNameFirst    = regexp.MustCompile(`(?is)<meta[^>]*\bname\s*=\s*["']scrapesafe["'][^>]*\bcontent\s*=\s*["']([^"']*)["']`)
	metaContentFirst = regexp.MustCompile(`(?is)<meta[^>]*\bcontent\s*=\s*["']([^"']*)["'][^>]*\bname\s*=\s*["']scrapesafe["']`)
)

// CheckMeta fetches the site's homepage and scans it for a
// <meta name="scrapesafe"> tag whose content carries the challenge token.
// Fetch errors and non-2xx statuses are negative results, not failures.
func (c *Checker) CheckMeta(ctx context.Context, domain, expectedToken string) Result {
	url := "https://" + domain

	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return Result{Details: fmt.Sprintf("fetching %s failed: %v", url, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Details: fmt.Sprintf("%s returned status %d", url, resp.StatusCode)}
	}

	content, ok := findMetaContent(string(resp.Body))
	if !ok {
		return Result{Details: "no scrapesafe meta tag found on homepage"}
	}
	if content == expectedToken || strings.Contains(content, expectedToken) {
		return Result{
			Found:   true,
			Valid:   true,
			Details: "token found in scrapesafe meta tag",
			Raw:     content,
		}
	}
	return Result{
		Details: "scrapesafe meta tag present but content did not match the token",
		Raw:     content,
	}
}

func findMetaContent(markup string) (string, bool) {
	if m := metaNameFirst.FindStringSubmatch(markup); m != nil {
		return m[1], true
	}
	if m := metaContentFirst.FindStringSubmatch(markup); m != nil {
		return m[1], true
	}
	return "", false
}
