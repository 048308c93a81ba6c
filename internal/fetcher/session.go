package fetcher

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// exportedCookie is the JSON shape written by common browser cookie-export
// extensions.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	ExpirationDate float64 `json:"expirationDate"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
}

// LoadCookies reads an externally established sign-in session from path.
// Both a JSON array export and the Netscape cookies.txt format are accepted.
func LoadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	cookies, err := ParseCookies(data)
	if err != nil {
		return nil, fmt.Errorf("parse cookies file %s: %w", path, err)
	}
	return cookies, nil
}

// ParseCookies decodes a cookie export, detecting the format from its first
// non-space byte.
func ParseCookies(data []byte) ([]*http.Cookie, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return parseJSONCookies(trimmed)
	}
	return parseNetscapeCookies(trimmed)
}

func parseJSONCookies(data []byte) ([]*http.Cookie, error) {
	var exported []exportedCookie
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, err
	}

	cookies := make([]*http.Cookie, 0, len(exported))
	for _, c := range exported {
		if c.Name == "" {
			continue
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.ExpirationDate > 0 {
			sec, frac := math.Modf(c.ExpirationDate)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9))
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

// parseNetscapeCookies reads the tab-separated cookies.txt format:
// domain, subdomains flag, path, secure, expiry, name, value.
func parseNetscapeCookies(data []byte) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = strings.TrimPrefix(line, "#HttpOnly_")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 tab-separated fields, got %d", lineNo, len(fields))
		}

		cookie := &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = time.Unix(exp, 0)
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
