package source

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	docPathRe = regexp.MustCompile(`/document/d/([A-Za-z0-9_-]+)`)
	bareIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
)

// DocumentID extracts the document id from a Docs url or a bare id.
func DocumentID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if bareIDRe.MatchString(raw) {
		return raw, true
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(u.Host), "docs.google.com") {
		return "", false
	}
	m := docPathRe.FindStringSubmatch(u.Path)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

func EditURL(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}
