package broadphase

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supercollider/internal/object"
)

func randomColliders(n int, seed int64) []Collider {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Collider, n)
	for i := range out {
		p := mgl64.Vec3{rng.Float64() * 1000, rng.Float64() * 1000, rng.Float64() * 1000}
		r := 1 + rng.Float64()*20
		out[i] = Collider{Index: i, Min: p.Sub(mgl64.Vec3{r, r, r}), Max: p.Add(mgl64.Vec3{r, r, r})}
	}
	return out
}

func assertSorted(t *testing.T, list []Collider, axis int) {
	t.Helper()
	ok := sort.SliceIsSorted(list, func(i, j int) bool {
		return list[i].Min[axis] < list[j].Min[axis]
	})
	assert.True(t, ok, "list not sorted on axis %d", axis)
}

func TestSorter_Sequential(t *testing.T) {
	list := randomColliders(200, 1)
	NewSorter(1, 8).Sort(list, AxisY)
	assertSorted(t, list, AxisY)
}

func TestSorter_ParallelMatchesSequential(t *testing.T) {
	for _, workers := range []int{2, 4, 8} {
		list := randomColliders(5000, int64(workers))
		want := make([]Collider, len(list))
		copy(want, list)
		NewSorter(1, 1).Sort(want, AxisX)

		NewSorter(workers, 2).Sort(list, AxisX)
		assertSorted(t, list, AxisX)

		gotKeys := make([]float64, len(list))
		wantKeys := make([]float64, len(want))
		for i := range list {
			gotKeys[i] = list[i].Min[AxisX]
			wantKeys[i] = want[i].Min[AxisX]
		}
		assert.Equal(t, wantKeys, gotKeys)
	}
}

func TestSorter_DuplicateKeys(t *testing.T) {
	list := make([]Collider, 1000)
	for i := range list {
		list[i] = Collider{Index: i, Min: mgl64.Vec3{float64(i % 3), 0, 0}}
	}
	NewSorter(4, 4).Sort(list, AxisX)
	assertSorted(t, list, AxisX)

	seen := make(map[int]bool, len(list))
	for _, c := range list {
		seen[c.Index] = true
	}
	assert.Len(t, seen, 1000, "sorting must permute, not drop")
}

func TestSorter_EmptyAndSingle(t *testing.T) {
	s := NewSorter(4, 1)
	s.Sort(nil, AxisX)
	one := []Collider{{Index: 3}}
	s.Sort(one, AxisZ)
	assert.Equal(t, 3, one[0].Index)
	assert.Equal(t, 1, NewSorter(0, 0).workers)
}

func TestOverlaps_MatchesBruteForce(t *testing.T) {
	list := randomColliders(400, 7)
	var want []Pair
	for i := range list {
		for j := i + 1; j < len(list); j++ {
			if boxesOverlap(list[i], list[j]) {
				want = append(want, makePair(list[i].Index, list[j].Index))
			}
		}
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].A != want[j].A {
			return want[i].A < want[j].A
		}
		return want[i].B < want[j].B
	})
	require.NotEmpty(t, want)

	got := NewSorter(4, 4).Overlaps(list)
	assert.Equal(t, want, got)
}

func TestOverlaps_RequiresAllAxes(t *testing.T) {
	list := []Collider{
		{Index: 0, Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{10, 10, 10}},
		{Index: 1, Min: mgl64.Vec3{5, 5, 50}, Max: mgl64.Vec3{15, 15, 60}},
		{Index: 2, Min: mgl64.Vec3{9, 9, 9}, Max: mgl64.Vec3{20, 20, 20}},
	}
	got := NewSorter(1, 1).Overlaps(list)
	assert.Equal(t, []Pair{{A: 0, B: 2}}, got)
}

func TestProject(t *testing.T) {
	w := &object.Object{
		Kind:    object.KindWeapon,
		Handle:  object.Handle{Index: 4},
		LastPos: mgl64.Vec3{-30, 0, 0},
		Pos:     mgl64.Vec3{0, 0, 0},
		Radius:  1,
	}
	c := Project(w)
	assert.Equal(t, 4, c.Index)
	assert.Equal(t, mgl64.Vec3{-31, -1, -1}, c.Min)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, c.Max)

	b := &object.Object{
		Kind: object.KindBeam,
		Beam: &object.BeamState{LastStart: mgl64.Vec3{0, 0, 100}, LastShot: mgl64.Vec3{0, 0, 0}, Width: 4},
	}
	c = Project(b)
	assert.Equal(t, mgl64.Vec3{-2, -2, -2}, c.Min)
	assert.Equal(t, mgl64.Vec3{2, 2, 102}, c.Max)

	s := &object.Object{Kind: object.KindShip, Pos: mgl64.Vec3{5, 5, 5}, Radius: 10}
	c = Project(s)
	assert.Equal(t, mgl64.Vec3{-5, -5, -5}, c.Min)
	assert.Equal(t, mgl64.Vec3{15, 15, 15}, c.Max)
}
