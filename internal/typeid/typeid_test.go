package typeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndValidate(t *testing.T) {
	id := NewShapeID()
	require.NoError(t, Validate(id, PrefixShape))
	assert.Error(t, Validate(id, PrefixRoom))
	assert.Error(t, Validate("not-a-typeid", PrefixShape))
	assert.NotEqual(t, id, NewShapeID())
}

func TestIsDraft(t *testing.T) {
	assert.True(t, IsDraft(NewDraftID()))
	assert.False(t, IsDraft(NewShapeID()))
}
