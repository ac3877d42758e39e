package drafts

import "time"

// ContentFormat says how a serialized body should be read.
type ContentFormat string

const (
	FormatDoc  ContentFormat = "doc"
	FormatHTML ContentFormat = "html"
)

// SyncState belongs to the default variant only. When IsSynced is true the
// external document is authoritative and Content is the last fetched copy.
type SyncState struct {
	IsSynced       bool          `json:"is_synced"`
	EditingURL     string        `json:"editing_url"`
	OriginalURL    string        `json:"original_url"`
	SyncDisabledAt *time.Time    `json:"sync_disabled_at"`
	Content        string        `json:"content"`
	Format         ContentFormat `json:"content_format"`
}

func (s SyncState) Clone() SyncState {
	out := s
	if s.SyncDisabledAt != nil {
		t := *s.SyncDisabledAt
		out.SyncDisabledAt = &t
	}
	return out
}

// Equal compares all fields, treating disabled-at timestamps by instant.
func (s SyncState) Equal(o SyncState) bool {
	if s.IsSynced != o.IsSynced || s.EditingURL != o.EditingURL || s.OriginalURL != o.OriginalURL ||
		s.Content != o.Content || s.Format != o.Format {
		return false
	}
	switch {
	case s.SyncDisabledAt == nil && o.SyncDisabledAt == nil:
		return true
	case s.SyncDisabledAt == nil || o.SyncDisabledAt == nil:
		return false
	default:
		return s.SyncDisabledAt.Equal(*o.SyncDisabledAt)
	}
}
