package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shard-federator/internal/common/errors"
)

type user struct{ ID int }

func TestFirst(t *testing.T) {
	var missing *user
	found := &user{ID: 7}

	assert.Equal(t, found, First([]interface{}{nil, missing, found, &user{ID: 8}}))
	assert.Nil(t, First([]interface{}{nil, missing}))
	assert.Nil(t, First(nil))
	assert.Equal(t, 0, First([]interface{}{0, 1}))
}

func TestConcat(t *testing.T) {
	rows, err := Concat[string]([]interface{}{
		[]string{"a", "b"},
		nil,
		[]string{},
		[]string{"c"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rows)

	empty, err := Concat[string](nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = Concat[string]([]interface{}{[]int{1}})
	assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
}

func TestUnion_LaterShardWins(t *testing.T) {
	m, err := Union[string, int]([]interface{}{
		map[string]int{"a": 1, "b": 2},
		map[string]int{"b": 20, "c": 3},
		nil,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 20, "c": 3}, m)

	_, err = Union[string, int]([]interface{}{map[string]string{}})
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	total, err := Sum([]interface{}{2, int64(0), int32(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	total, err = Sum(nil)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = Sum([]interface{}{"3"})
	assert.Error(t, err)
}
