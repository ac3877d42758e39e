package source

import (
	"time"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
)

// State names which side owns a draft body.
type State string

const (
	Local    State = "local"
	Mirrored State = "mirrored"
)

func StateOf(s types.SyncState) State {
	if s.IsSynced {
		return Mirrored
	}
	return Local
}

// Enable switches s to mirroring. The cached body becomes the exported html.
func Enable(s types.SyncState, editingURL, originalURL, html string) types.SyncState {
	out := s.Clone()
	out.IsSynced = true
	out.EditingURL = editingURL
	if originalURL != "" {
		out.OriginalURL = originalURL
	}
	out.SyncDisabledAt = nil
	out.Content = html
	out.Format = types.FormatHTML
	return out
}

// Disable stops mirroring. The last mirrored content stays as the local body
// and both urls are kept so sync can be re-enabled later.
func Disable(s types.SyncState, now time.Time) types.SyncState {
	out := s.Clone()
	out.IsSynced = false
	at := now.UTC()
	out.SyncDisabledAt = &at
	return out
}

// Stale reports whether the external document changed after sync was turned
// off.
func Stale(s types.SyncState, modified time.Time) bool {
	if s.IsSynced || s.SyncDisabledAt == nil || modified.IsZero() {
		return false
	}
	return modified.After(*s.SyncDisabledAt)
}
