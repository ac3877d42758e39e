package locks

import (
	"github.com/google/uuid"
)

// ScopeKey names a draft-wide mutual exclusion token.
func ScopeKey(articleID uuid.UUID, scope string) string {
	return "draft:" + articleID.String() + ":scope:" + scope
}

// FieldKey names the per-field commit lane of a draft.
func FieldKey(articleID uuid.UUID, field string) string {
	return "draft:" + articleID.String() + ":field:" + field
}
