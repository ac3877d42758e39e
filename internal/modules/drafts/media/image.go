package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
)

const maxFileNameLen = 120

// decodable lists the formats registered with image.DecodeConfig.
var decodable = map[string]bool{
	"image/gif":  true,
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// resolveMime keeps a declared image type and sniffs everything else.
func resolveMime(data []byte, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

type imageInfo struct {
	MimeType string
	Width    int
	Height   int
}

func inspectImage(data []byte, declared string) (imageInfo, error) {
	const op = "Drafts.Media.Inspect"
	mt := resolveMime(data, declared)
	if !strings.HasPrefix(mt, "image/") {
		return imageInfo{}, domainagg.FieldError(op, "ref", "not an image: "+mt)
	}
	info := imageInfo{MimeType: mt}
	if !decodable[mt] {
		return info, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return imageInfo{}, domainagg.FieldError(op, "ref", "unreadable image")
	}
	info.Width, info.Height = cfg.Width, cfg.Height
	return info, nil
}

// fileName derives a storage-safe name from the source URL, falling back to
// <assetID><ext>.
func fileName(rawURL, mimeType string, assetID uuid.UUID) string {
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	name := ""
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			name = sanitizeFileName(path.Base(u.Path))
		}
	}
	if name == "" {
		return assetID.String() + ext
	}
	if path.Ext(name) == "" {
		name += ext
	}
	return name
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxFileNameLen {
		ext := path.Ext(out)
		out = out[:maxFileNameLen-len(ext)] + ext
	}
	return out
}

func storageKey(articleID, assetID uuid.UUID, name string) string {
	return "articles/" + articleID.String() + "/media/" + assetID.String() + "/" + name
}
