package typeid

import (
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixShape = "shape"
	PrefixDraft = "draft"
	PrefixRoom  = "room"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewShapeID() string { return New(PrefixShape) }
func NewDraftID() string { return New(PrefixDraft) }
func NewRoomID() string  { return New(PrefixRoom) }

// IsDraft reports whether id was minted for a draft rather than a committed shape.
func IsDraft(id string) bool {
	return strings.HasPrefix(id, PrefixDraft+"_")
}

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
