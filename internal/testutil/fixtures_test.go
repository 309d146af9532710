package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_YAMLAndCUEAgree(t *testing.T) {
	fromYAML := Schema(t)
	fromCUE := SchemaCUE(t)

	require.Len(t, fromCUE.Classes(), len(fromYAML.Classes()))
	for _, c := range fromYAML.Classes() {
		other, ok := fromCUE.Class(c.Name)
		require.True(t, ok, c.Name)
		assert.Len(t, other.Fields(), len(c.Fields()), c.Name)
		assert.Len(t, other.Tables(), len(c.Tables()), c.Name)
		assert.Equal(t, c.SelectorValues(), other.SelectorValues(), c.Name)
	}
}

func TestSchema_Hierarchy(t *testing.T) {
	s := Schema(t)

	bike, err := s.Lookup("Bike")
	require.NoError(t, err)
	assert.Equal(t, "Vehicle", bike.Root().Name)
	assert.Len(t, bike.Tables(), 2)
	assert.Len(t, bike.SelectorValues(), 2)

	vehicle, err := s.Lookup("Vehicle")
	require.NoError(t, err)
	assert.Len(t, vehicle.SelectorValues(), 3, "abstract root has no value of its own")
}

func TestFixtureStore_Seeded(t *testing.T) {
	st := FixtureStore(t)
	ctx := context.Background()

	rows, err := st.Query(ctx, "SELECT id FROM Contact ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, ContactIDs, ids)

	var bikes int
	require.NoError(t, st.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM Bike").Scan(&bikes))
	assert.Equal(t, 2, bikes)
}
