package offsetset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBitAndIsSet(t *testing.T) {
	s := New()
	ok, err := s.IsSet(5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetBit(5))
	ok, err = s.IsSet(5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOutOfRangeReturnsOffsetError(t *testing.T) {
	s := New()
	err := s.SetBit(MaxOffset)
	require.Error(t, err)
	var oe *OffsetError
	assert.ErrorAs(t, err, &oe)

	err = s.SetBit(-1)
	require.Error(t, err)
}

func TestLengthLifecycle(t *testing.T) {
	s := New()
	assert.False(t, s.HasLength())
	_, err := s.GetLength()
	require.Error(t, err)

	require.NoError(t, s.SetLength(10))
	n, err := s.GetLength()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestIsAllSetRequiresDeclaredLength(t *testing.T) {
	s := New()
	require.NoError(t, s.SetBit(0))
	assert.False(t, s.IsAllSet(), "no length declared yet")

	require.NoError(t, s.SetLength(1))
	assert.True(t, s.IsAllSet())
}

func TestIsAllSetAcrossFullRange(t *testing.T) {
	s := New()
	require.NoError(t, s.SetLength(5))
	for i := 0; i < 5; i++ {
		assert.False(t, s.IsAllSet())
		require.NoError(t, s.SetBit(i))
	}
	assert.True(t, s.IsAllSet())
}

func TestUnsetBelow(t *testing.T) {
	s := New()
	require.NoError(t, s.SetBit(0))
	require.NoError(t, s.SetBit(2))

	missing := s.UnsetBelow(4)
	assert.Equal(t, []int{1, 3}, missing)
}

func TestClearBit(t *testing.T) {
	s := New()
	require.NoError(t, s.SetBit(3))
	require.NoError(t, s.ClearBit(3))
	ok, err := s.IsSet(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountRespectsDeclaredLength(t *testing.T) {
	s := New()
	require.NoError(t, s.SetLength(3))
	require.NoError(t, s.SetBit(0))
	require.NoError(t, s.SetBit(1))
	require.NoError(t, s.SetBit(250)) // beyond declared length, shouldn't count
	assert.Equal(t, 2, s.Count())
}
