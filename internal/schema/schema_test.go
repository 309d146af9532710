package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/ir"
)

func vehicleSchema(t *testing.T) *Schema {
	t.Helper()

	vehicle := &Class{
		Name: "Vehicle",
		OwnTables: []*Table{{
			Name: "Vehicle",
			Fields: []*Field{
				{Name: "Id", Column: "id", Kind: ir.KindInt, PrimaryKey: true},
				{Name: "Type", Column: "type", Kind: ir.KindInt},
				{Name: "Name", Column: "name", Kind: ir.KindString, Nullable: true},
				{Name: "Owner", Column: "owner", Kind: ir.KindInt, Nullable: true, References: "Person"},
			},
		}},
		SubclassSelectorField: "Type",
		Abstract:              true,
	}
	car := &Class{Name: "Car", Inherits: "Vehicle", SubclassSelectorValue: ir.Int(1)}
	bike := &Class{
		Name:                  "Bike",
		Inherits:              "Vehicle",
		SubclassSelectorValue: ir.Int(2),
		OwnTables: []*Table{{
			Name:   "Bike",
			Fields: []*Field{{Name: "TwoWheels", Column: "two_wheels", Kind: ir.KindBool}},
		}},
	}
	extended := &Class{Name: "ExtendedBike", Inherits: "Bike", SubclassSelectorValue: ir.Int(3)}
	person := &Class{
		Name: "Person",
		OwnTables: []*Table{{
			Name: "Person",
			Fields: []*Field{
				{Name: "Id", Column: "id", Kind: ir.KindInt, PrimaryKey: true},
				{Name: "Name", Column: "name", Kind: ir.KindString},
			},
		}},
		OwnCollections: []*Collection{
			{Name: "Vehicles", Kind: OneToMany, Class: "Vehicle", ForeignField: "Owner"},
			{Name: "Friends", Kind: ManyToMany, Class: "Person", Relation: "Friendship"},
		},
	}
	rel := &Relation{
		Name:  "Friendship",
		Table: "Friendship",
		Left:  RelationSide{Column: "a", Class: "Person", Kind: ir.KindInt},
		Right: RelationSide{Column: "b", Class: "Person", Kind: ir.KindInt},
	}

	s, err := New([]*Class{vehicle, car, bike, extended, person}, []*Relation{rel})
	require.NoError(t, err)
	return s
}

func TestNewResolvesInheritance(t *testing.T) {
	s := vehicleSchema(t)

	bike, ok := s.Class("Bike")
	require.True(t, ok)

	assert.Len(t, bike.Tables(), 2)
	assert.Equal(t, "Vehicle", bike.PrimaryTable().Name)
	assert.Equal(t, "Bike", bike.Tables()[1].Name)

	f, ok := bike.Field("TwoWheels")
	require.True(t, ok)
	assert.Equal(t, "Bike", f.Table().Name)

	inherited, ok := bike.Field("Name")
	require.True(t, ok)
	assert.Equal(t, "Vehicle", inherited.Table().Name)

	key, err := bike.KeyField()
	require.NoError(t, err)
	assert.Equal(t, "id", key.Column)

	require.NotNil(t, bike.Selector())
	assert.Equal(t, "type", bike.Selector().Column)
}

func TestSelectorValues(t *testing.T) {
	s := vehicleSchema(t)

	testCases := []struct {
		class string
		want  []ir.Value
	}{
		{"Vehicle", []ir.Value{ir.Int(1), ir.Int(2), ir.Int(3)}},
		{"Bike", []ir.Value{ir.Int(2), ir.Int(3)}},
		{"ExtendedBike", []ir.Value{ir.Int(3)}},
	}

	for _, tc := range testCases {
		t.Run(tc.class, func(t *testing.T) {
			c, ok := s.Class(tc.class)
			require.True(t, ok)
			assert.Equal(t, tc.want, c.SelectorValues())
			assert.True(t, c.InHierarchy())
		})
	}

	person, _ := s.Class("Person")
	assert.False(t, person.InHierarchy())
}

func TestClassForSelector(t *testing.T) {
	s := vehicleSchema(t)
	vehicle, _ := s.Class("Vehicle")

	assert.Equal(t, "ExtendedBike", vehicle.ClassForSelector(int64(3)).Name)
	assert.Equal(t, "Car", vehicle.ClassForSelector(int64(1)).Name)
	assert.Equal(t, "Vehicle", vehicle.ClassForSelector(int64(99)).Name)
}

func TestIsA(t *testing.T) {
	s := vehicleSchema(t)
	vehicle, _ := s.Class("Vehicle")
	bike, _ := s.Class("Bike")
	ext, _ := s.Class("ExtendedBike")
	car, _ := s.Class("Car")

	assert.True(t, ext.IsA(vehicle))
	assert.True(t, ext.IsA(bike))
	assert.False(t, car.IsA(bike))
	assert.Equal(t, vehicle, ext.Root())
}

func TestCollections(t *testing.T) {
	s := vehicleSchema(t)
	person, _ := s.Class("Person")

	vehicles, ok := person.Collection("Vehicles")
	require.True(t, ok)
	assert.Equal(t, "Vehicle", vehicles.Element().Name)

	friends, ok := person.Collection("Friends")
	require.True(t, ok)
	assert.Equal(t, "a", friends.OwnerColumn())
	assert.Equal(t, "b", friends.ElementColumn())
	assert.Equal(t, "Friendship", friends.Link().Table)

	owner, _ := s.Class("Vehicle")
	f, _ := owner.Field("Owner")
	assert.Equal(t, person, f.RefClass())
}

func TestLookupUnknownClass(t *testing.T) {
	s := vehicleSchema(t)
	_, err := s.Lookup("Truck")
	require.Error(t, err)
	assert.True(t, ir.IsSchemaResolution(err))
}

func TestNewErrors(t *testing.T) {
	testCases := []struct {
		name    string
		classes []*Class
		wantErr string
	}{
		{
			name:    "unknown parent",
			classes: []*Class{{Name: "A", Inherits: "B"}},
			wantErr: "inherits unknown class",
		},
		{
			name: "no primary key",
			classes: []*Class{{Name: "A", OwnTables: []*Table{{
				Name:   "A",
				Fields: []*Field{{Name: "X", Column: "x", Kind: ir.KindInt}},
			}}}},
			wantErr: "no primary key",
		},
		{
			name: "unknown reference",
			classes: []*Class{{Name: "A", OwnTables: []*Table{{
				Name: "A",
				Fields: []*Field{
					{Name: "Id", Column: "id", Kind: ir.KindInt, PrimaryKey: true},
					{Name: "B", Column: "b", Kind: ir.KindInt, References: "B"},
				},
			}}}},
			wantErr: "references unknown class",
		},
		{
			name:    "duplicate class",
			classes: []*Class{{Name: "A"}, {Name: "A"}},
			wantErr: "duplicate class",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.classes, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
