package slug

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/draftsync-backend/internal/data/repos"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

const (
	MaxLen   = 96
	Fallback = "untitled"
)

// ligatures have no NFKD decomposition into ASCII.
var ligatures = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe",
	"ø", "o", "Ø", "o", "đ", "d", "Đ", "d", "ł", "l", "Ł", "l",
)

// Normalize folds a title into a lowercase ASCII slug. Accented letters lose
// their marks; every other run of non-alphanumerics becomes one dash.
func Normalize(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, ligatures.Replace(title))
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > MaxLen {
		out = strings.TrimRight(out[:MaxLen], "-")
	}
	return out
}

// Base is Normalize with the fallback applied to titles that fold to nothing.
func Base(title string) string {
	if s := Normalize(title); s != "" {
		return s
	}
	return Fallback
}

// Valid reports whether s is already in normalized form.
func Valid(s string) bool {
	return s != "" && Normalize(s) == s
}

// WithSuffix appends the collision suffix for a family of n existing slugs.
func WithSuffix(base string, n int64) string {
	if n <= 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n+1)
}

// Deriver computes partition-unique slugs by counting the existing family.
// The count is not a reservation: two concurrent callers can compute the same
// value, and the partition's unique index rejects the loser.
type Deriver struct {
	articles repos.ArticleRepo
	log      *logger.Logger
}

func NewDeriver(articles repos.ArticleRepo, baseLog *logger.Logger) *Deriver {
	return &Deriver{articles: articles, log: baseLog.With("component", "SlugDeriver")}
}

func (d *Deriver) Unique(dbc dbctx.Context, status types.ArticleStatus, title string, excludeID uuid.UUID) (string, error) {
	base := Base(title)
	n, err := d.articles.CountSlugFamily(dbc, status, base, excludeID)
	if err != nil {
		return "", fmt.Errorf("count slug family %q: %w", base, err)
	}
	out := WithSuffix(base, n)
	if n > 0 {
		d.log.Debug("slug suffixed", "base", base, "existing", n, "slug", out)
	}
	return out, nil
}

func (d *Deriver) Available(dbc dbctx.Context, status types.ArticleStatus, slug string, excludeID uuid.UUID) (bool, error) {
	taken, err := d.articles.SlugTaken(dbc, status, slug, excludeID)
	if err != nil {
		return false, fmt.Errorf("check slug %q: %w", slug, err)
	}
	return !taken, nil
}
