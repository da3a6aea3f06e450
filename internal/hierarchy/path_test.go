package hierarchy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFullChain(t *testing.T) {
	p := Build([]Segment{
		{Type: TypeRoom, Name: "Main Laboratory"},
		{Type: TypeDevice, Name: "Freezer Unit 1"},
		{Type: TypeShelf, Name: "Shelf-A"},
		{Type: TypeRack, Name: "Rack R1"},
	}, "A5")

	require.Equal(t, "Main Laboratory > Freezer Unit 1 > Shelf-A > Rack R1 > A5", p.Display())
	require.Len(t, p, 5)
	require.Equal(t, TypePosition, p[4].Type)
}

func TestBuildSkipsMissingLevels(t *testing.T) {
	// Assignment directly at shelf granularity: no rack, no box, no coordinate.
	p := Build([]Segment{
		{Type: TypeRoom, Name: "Main Laboratory"},
		{Type: TypeDevice, Name: "Freezer Unit 1"},
		{Type: TypeShelf, Name: "Shelf-A"},
		{Type: TypeRack, Name: ""},
		{Type: TypeBox, Name: "   "},
	}, "")

	display := p.Display()
	require.Equal(t, "Main Laboratory > Freezer Unit 1 > Shelf-A", display)
	require.False(t, strings.HasSuffix(display, Separator))
	require.NotContains(t, display, Separator+Separator)
}

func TestBuildEmpty(t *testing.T) {
	require.Equal(t, "", Build(nil, "").Display())
	require.Equal(t, "B2", Build(nil, "B2").Display())
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want LocationType
		ok   bool
	}{
		{"rack", TypeRack, true},
		{"Rack", TypeRack, true},
		{"  BOX ", TypeBox, true},
		{"room", TypeRoom, true},
		{"freezer", "", false},
		{"", "", false},
	} {
		got, ok := Parse(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestValidParent(t *testing.T) {
	require.True(t, ValidParent(TypeRoom, "", false))
	require.False(t, ValidParent(TypeRoom, TypeRoom, true))
	require.True(t, ValidParent(TypeDevice, TypeRoom, true))
	require.True(t, ValidParent(TypePosition, TypeBox, true))
	require.False(t, ValidParent(TypeDevice, "", false))
	require.False(t, ValidParent(TypeRack, TypeDevice, true), "rack under device skips the shelf level")
}

func TestAssignable(t *testing.T) {
	require.True(t, TypeRack.Assignable())
	require.True(t, TypeBox.Assignable())
	require.False(t, TypeRoom.Assignable())
	require.False(t, TypePosition.Assignable())
}
