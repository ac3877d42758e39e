package media

import (
	"context"
	"strings"
	"testing"
)

func TestMirrorHTMLRewritesStoredImages(t *testing.T) {
	f := newMediaFixture(t)
	m := NewMirror(testLogger(t), f.resolver, "https://cdn.test")
	html := `<html><body><p>hi</p>` +
		`<img src="` + f.server.URL + `/one.png">` +
		`<img src="` + f.server.URL + `/missing.png">` +
		`<img src="https://cdn.test/already/there.png">` +
		`</body></html>`

	out, err := m.MirrorHTML(context.Background(), f.article.ID, html)
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if strings.Contains(out, f.server.URL+"/one.png") {
		t.Fatalf("stored image should be rewritten: %s", out)
	}
	if !strings.Contains(out, "https://cdn.test/articles/"+f.article.ID.String()+"/media/") {
		t.Fatalf("missing rewritten src: %s", out)
	}
	if !strings.Contains(out, f.server.URL+"/missing.png") {
		t.Fatalf("failed image keeps its source: %s", out)
	}
	if f.server.Hits("/already/there.png") != 0 {
		t.Fatalf("stored copies must not be fetched")
	}
}

func TestMirrorHTMLWithoutImagesIsUntouched(t *testing.T) {
	f := newMediaFixture(t)
	m := NewMirror(testLogger(t), f.resolver, "")
	html := "<p>no images</p>"
	out, err := m.MirrorHTML(context.Background(), f.article.ID, html)
	if err != nil || out != html {
		t.Fatalf("untouched: want=%q got=%q err=%v", html, out, err)
	}
}
