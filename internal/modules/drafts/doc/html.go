package doc

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLImageSources lists the distinct <img src> values of an HTML export.
func HTMLImageSources(html string) ([]string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	seen := map[string]struct{}{}
	var out []string
	d.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		out = append(out, src)
	})
	return out, nil
}

// RewriteHTMLImages replaces img sources found in repl. The input is
// returned untouched when nothing matches.
func RewriteHTMLImages(html string, repl map[string]string) (string, error) {
	if len(repl) == 0 {
		return html, nil
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	changed := 0
	d.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if next, ok := repl[src]; ok && next != "" && next != src {
			s.SetAttr("src", next)
			changed++
		}
	})
	if changed == 0 {
		return html, nil
	}
	out, err := d.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}
