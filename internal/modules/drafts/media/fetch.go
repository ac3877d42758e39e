package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
)

const (
	DefaultMaxBytes     int64 = 15 << 20
	DefaultFetchTimeout       = 20 * time.Second

	maxRedirects = 5
)

var errTooLarge = errors.New("size exceeded")

// Ref is a parsed image reference. SourceRef is the ingestion key; URL is
// empty for inline payloads.
type Ref struct {
	SourceRef string
	URL       string
	MimeType  string
	Data      []byte
}

func (r Ref) Inline() bool { return r.URL == "" }

// ParseRef accepts an http(s) URL or a base64 data URI.
func ParseRef(raw string) (Ref, error) {
	const op = "Drafts.Media.ParseRef"
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		return parseDataURI(op, s)
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Ref{}, domainagg.FieldError(op, "ref", "malformed URL")
	}
	return Ref{SourceRef: s, URL: s}, nil
}

func parseDataURI(op, s string) (Ref, error) {
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(strings.ToLower(header), ";base64") {
		return Ref{}, domainagg.FieldError(op, "ref", "malformed URL")
	}
	mediaType := strings.TrimSpace(header[:len(header)-len(";base64")])
	if mediaType != "" {
		mt, _, err := mime.ParseMediaType(mediaType)
		if err != nil {
			return Ref{}, domainagg.FieldError(op, "ref", "malformed URL")
		}
		mediaType = mt
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil || len(data) == 0 {
		return Ref{}, domainagg.FieldError(op, "ref", "malformed URL")
	}
	sum := sha256.Sum256(data)
	return Ref{
		SourceRef: "sha256:" + hex.EncodeToString(sum[:]),
		MimeType:  mediaType,
		Data:      data,
	}, nil
}

// Payload is a fetched image before storage.
type Payload struct {
	Data     []byte
	MimeType string
}

// Fetcher downloads remote images with a timeout and a byte ceiling.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	c := &http.Client{Timeout: timeout}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		return nil
	}
	return &Fetcher{client: c, maxBytes: maxBytes}
}

func (f *Fetcher) MaxBytes() int64 { return f.maxBytes }

// Fetch resolves ref into bytes. Inline refs skip the network.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) (Payload, error) {
	const op = "Drafts.Media.Fetch"
	if ref.Inline() {
		if int64(len(ref.Data)) > f.maxBytes {
			return Payload{}, domainagg.FieldError(op, "ref", errTooLarge.Error())
		}
		return Payload{Data: ref.Data, MimeType: ref.MimeType}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return Payload{}, domainagg.FieldError(op, "ref", "malformed URL")
	}
	req.Header.Set("Accept", "image/*")
	resp, err := f.client.Do(req)
	if err != nil {
		return Payload{}, domainagg.Unavailable(op, "image source unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Payload{}, domainagg.Unavailable(op, fmt.Sprintf("image source returned http %d", resp.StatusCode), nil)
	}
	if resp.ContentLength > f.maxBytes {
		return Payload{}, domainagg.FieldError(op, "ref", errTooLarge.Error())
	}

	data, err := readLimited(resp.Body, f.maxBytes)
	if errors.Is(err, errTooLarge) {
		return Payload{}, domainagg.FieldError(op, "ref", errTooLarge.Error())
	}
	if err != nil {
		return Payload{}, domainagg.Unavailable(op, "read image source", err)
	}

	mediaType := ""
	if ct := strings.TrimSpace(resp.Header.Get("Content-Type")); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}
	return Payload{Data: data, MimeType: mediaType}, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, errTooLarge
	}
	return buf.Bytes(), nil
}
