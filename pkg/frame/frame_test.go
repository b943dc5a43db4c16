package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesColumnLengths(t *testing.T) {
	_, err := New(
		Column{Name: "a", Kind: KindInt64, Values: []interface{}{int64(1), int64(2)}},
		Column{Name: "b", Kind: KindString, Values: []interface{}{"x"}},
	)
	require.Error(t, err)
}

func TestFrameAccessors(t *testing.T) {
	f, err := New(
		Column{Name: "a", Kind: KindInt64, Values: []interface{}{int64(1), int64(2)}},
		Column{Name: "b", Kind: KindString, Values: []interface{}{"x", "y"}},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, f.NumRows())
	assert.Equal(t, 2, f.NumCols())
	assert.Equal(t, []string{"a", "b"}, f.Names())
	assert.Equal(t, "b", f.Column(1).Name)
	assert.Equal(t, KindString, f.Column(1).Kind)
}

func TestEmptyFrame(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	assert.Equal(t, 0, f.NumRows())
	assert.Equal(t, 0, f.NumCols())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "object", KindObject.String())
	assert.Equal(t, "int64", KindInt64.String())
	assert.Equal(t, "datetime", KindDatetime.String())
	assert.Equal(t, "timedelta", KindTimedelta.String())
}
