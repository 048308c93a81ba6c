package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Regions maps a region key onto the notebook host for that marketplace.
var Regions = map[string]string{
	"com":    "read.amazon.com",
	"co.uk":  "read.amazon.co.uk",
	"de":     "read.amazon.de",
	"fr":     "read.amazon.fr",
	"es":     "read.amazon.es",
	"it":     "read.amazon.it",
	"nl":     "read.amazon.nl",
	"co.jp":  "read.amazon.co.jp",
	"ca":     "read.amazon.ca",
	"com.au": "read.amazon.com.au",
	"in":     "read.amazon.in",
	"com.br": "read.amazon.com.br",
	"com.mx": "read.amazon.com.mx",
}

// RegionKeys returns the supported region keys in sorted order.
func RegionKeys() []string {
	keys := make([]string, 0, len(Regions))
	for k := range Regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BaseURL returns the scheme and host for the configured region.
// A region given as a full URL is used as-is, which lets tests point the
// fetcher at a local server.
func (s SourceConfig) BaseURL() string {
	if strings.HasPrefix(s.Region, "http://") || strings.HasPrefix(s.Region, "https://") {
		return strings.TrimRight(s.Region, "/")
	}
	host, ok := Regions[s.Region]
	if !ok {
		host = Regions["com"]
	}
	return "https://" + host
}

// LibraryURL is the notebook landing page listing every book.
func (s SourceConfig) LibraryURL() string {
	return s.BaseURL() + s.notebookPath()
}

// BookURL is the identifier-scoped annotations page for one book.
func (s SourceConfig) BookURL(asin string) string {
	q := url.Values{}
	q.Set("asin", asin)
	q.Set("contentLimitState", "")
	return fmt.Sprintf("%s%s?%s", s.BaseURL(), s.notebookPath(), q.Encode())
}

func (s SourceConfig) notebookPath() string {
	if s.NotebookPath == "" {
		return "/notebook"
	}
	if !strings.HasPrefix(s.NotebookPath, "/") {
		return "/" + s.NotebookPath
	}
	return s.NotebookPath
}
