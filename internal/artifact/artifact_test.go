package artifact

import (
	"testing"

	"morphogen/internal/dna"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genesis(id uint64) Artifact {
	return Artifact{ID: id, Genome: dna.FromUint64(id * 1000), IsGenesis: true}
}

func seeded(t *testing.T, counts ...uint64) *Registry {
	t.Helper()
	r := NewRegistry()
	for i, c := range counts {
		a := genesis(uint64(i + 1))
		a.InteractionCount = c
		require.NoError(t, r.Insert(a))
	}
	return r
}

func TestRegistry_InsertSequence(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Insert(genesis(1)))
	require.NoError(t, r.Insert(genesis(2)))

	assert.Equal(t, uint64(2), r.TotalSupply())
	assert.Equal(t, uint64(3), r.NextID())

	err := r.Insert(genesis(5))
	assert.Error(t, err, "ids must be dense")
}

func TestRegistry_InsertValidation(t *testing.T) {
	tests := []struct {
		name string
		a    Artifact
	}{
		{"genesis with parents", Artifact{ID: 3, IsGenesis: true, ParentA: 1, ParentB: 2}},
		{"genesis with generation", Artifact{ID: 3, IsGenesis: true, Generation: 1}},
		{"bred with missing parent", Artifact{ID: 3, Generation: 1, ParentA: 1, ParentB: 9}},
		{"bred with zero parent", Artifact{ID: 3, Generation: 1, ParentA: 1}},
		{"bred at generation zero", Artifact{ID: 3, ParentA: 1, ParentB: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := seeded(t, 0, 0)
			assert.Error(t, r.Insert(tt.a))
			assert.Equal(t, uint64(2), r.TotalSupply())
		})
	}
}

func TestRegistry_TouchAndGet(t *testing.T) {
	r := seeded(t, 0, 0)

	n, err := r.Touch(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	got, ok := r.Get(2)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.InteractionCount)

	_, err = r.Touch(3)
	assert.ErrorIs(t, err, ErrUnknown)

	_, ok = r.Get(0)
	assert.False(t, ok)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := seeded(t, 4)
	a, _ := r.Get(1)
	a.InteractionCount = 100
	b, _ := r.Get(1)
	assert.Equal(t, uint64(4), b.InteractionCount)
}

func TestFitness_TieBreak(t *testing.T) {
	r := seeded(t, 5, 5, 3)

	most, ok := r.MostPopular()
	require.True(t, ok)
	assert.Equal(t, uint64(1), most)

	second, ok := r.SecondMostPopular(1)
	require.True(t, ok)
	assert.Equal(t, uint64(2), second)
}

func TestFitness_Cases(t *testing.T) {
	tests := []struct {
		name       string
		counts     []uint64
		wantMost   uint64
		wantSecond uint64
	}{
		{"all zero picks lowest ids", []uint64{0, 0, 0}, 1, 2},
		{"strict maximum", []uint64{1, 9, 3}, 2, 3},
		{"later higher wins", []uint64{2, 2, 7, 7}, 3, 4},
		{"second below first", []uint64{0, 4, 0, 4}, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := seeded(t, tt.counts...)
			a, b, ok := r.Parents()
			require.True(t, ok)
			assert.Equal(t, tt.wantMost, a)
			assert.Equal(t, tt.wantSecond, b)
		})
	}
}

func TestFitness_None(t *testing.T) {
	r := NewRegistry()
	_, ok := r.MostPopular()
	assert.False(t, ok)

	r = seeded(t, 3)
	_, ok = r.SecondMostPopular(1)
	assert.False(t, ok)

	_, _, ok = r.Parents()
	assert.False(t, ok)
}

func TestPropertiesOf(t *testing.T) {
	got := PropertiesOf(dna.FromUint64(1234567890))
	want := Properties{ColorHue: 90, Pattern: 5, Complexity: 35, SizeMultiplier: 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PropertiesOf mismatch (-want +got):\n%s", diff)
	}

	zero := PropertiesOf(dna.Genome{})
	assert.Equal(t, Properties{SizeMultiplier: 1}, zero)
}

func TestPropertiesOf_Bounds(t *testing.T) {
	for n := uint64(0); n < 2_000_000; n += 7919 {
		p := PropertiesOf(dna.FromUint64(n * 104729))
		require.Less(t, p.ColorHue, uint64(360))
		require.Less(t, p.Pattern, uint64(10))
		require.Less(t, p.Complexity, uint64(100))
		require.GreaterOrEqual(t, p.SizeMultiplier, uint64(1))
		require.LessOrEqual(t, p.SizeMultiplier, uint64(5))
	}
}

func TestRegistry_GenerationsAndAncestors(t *testing.T) {
	r := seeded(t, 0, 0, 0)
	require.NoError(t, r.Insert(Artifact{ID: 4, Generation: 1, ParentA: 1, ParentB: 2}))
	require.NoError(t, r.Insert(Artifact{ID: 5, Generation: 2, ParentA: 4, ParentB: 3}))
	require.NoError(t, r.Insert(Artifact{ID: 6, Generation: 3, ParentA: 5, ParentB: 4}))

	assert.Equal(t, []uint64{1, 2, 3}, r.InGeneration(0))
	assert.Equal(t, []uint64{5}, r.InGeneration(2))
	assert.Empty(t, r.InGeneration(9))
	assert.Equal(t, 3, r.GenesisCount())

	anc, err := r.Ancestors(6)
	require.NoError(t, err)
	var ids []uint64
	for _, a := range anc {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids)

	anc, err = r.Ancestors(1)
	require.NoError(t, err)
	assert.Empty(t, anc)

	_, err = r.Ancestors(42)
	assert.ErrorIs(t, err, ErrUnknown)
}
