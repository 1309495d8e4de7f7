package studio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio/internal/catalog"
)

func reduce(t *testing.T, sel Selection, actions ...Action) Selection {
	t.Helper()
	for _, a := range actions {
		var err error
		sel, err = Reduce(sel, a)
		require.NoError(t, err)
	}
	return sel
}

func TestSingleValuedToggleOff(t *testing.T) {
	cases := []struct {
		category catalog.Category
		value    string
	}{
		{catalog.Clothes, "สูทคลาสสิก"},
		{catalog.Background, "พื้นหลังสีขาว"},
		{catalog.HairColor, "ดำธรรมชาติ"},
		{catalog.Hairstyle, "ทรงสั้น"},
		{catalog.Pose, "หน้าตรง"},
	}
	for _, tc := range cases {
		a, err := ActionFor(tc.category, tc.value)
		require.NoError(t, err)

		once := reduce(t, Selection{}, a)
		assert.Equal(t, tc.value, once.Value(tc.category), tc.category)

		twice := reduce(t, once, a)
		assert.Empty(t, twice.Value(tc.category), tc.category)
	}
}

func TestMultiValuedToggle(t *testing.T) {
	base := reduce(t, Selection{}, LightingToggled{"A"}, LightingToggled{"B"})
	assert.Equal(t, []string{"A", "B"}, base.Lighting)

	added := reduce(t, base, LightingToggled{"C"})
	assert.Equal(t, []string{"A", "B", "C"}, added.Lighting)

	back := reduce(t, added, LightingToggled{"C"})
	assert.Equal(t, base.Lighting, back.Lighting)

	removed := reduce(t, base, LightingToggled{"A"})
	assert.Equal(t, []string{"B"}, removed.Lighting)

	// base must not have been mutated by the reductions above.
	assert.Equal(t, []string{"A", "B"}, base.Lighting)

	r := reduce(t, Selection{}, RetouchingToggled{"x"}, RetouchingToggled{"y"}, RetouchingToggled{"x"})
	assert.Equal(t, []string{"y"}, r.Retouching)
}

func TestClothesChangeClearsColor(t *testing.T) {
	sel := reduce(t, Selection{}, ClothesSelected{"สูทคลาสสิก"}, ClothesColorSelected{"สีดำ"})
	assert.Equal(t, "สีดำ", sel.ClothesColor)

	cleared := reduce(t, sel, ClothesSelected{"สูทคลาสสิก"})
	assert.Empty(t, cleared.Clothes)
	assert.Empty(t, cleared.ClothesColor)

	changed := reduce(t, sel, ClothesSelected{"เชิ้ตขาว"})
	assert.Equal(t, "เชิ้ตขาว", changed.Clothes)
	assert.Empty(t, changed.ClothesColor)
}

func TestClothesColorToggleAndOrphan(t *testing.T) {
	orphan := reduce(t, Selection{}, ClothesColorSelected{"สีดำ"})
	assert.Empty(t, orphan.ClothesColor)

	sel := reduce(t, Selection{}, ClothesSelected{"สูท"}, ClothesColorSelected{"สีดำ"}, ClothesColorSelected{"สีดำ"})
	assert.Empty(t, sel.ClothesColor)
	assert.Equal(t, "สูท", sel.Clothes)
}

func TestPresetLoadedReplacesSelection(t *testing.T) {
	current := reduce(t, Selection{}, PoseSelected{"หน้าตรง"}, LightingToggled{"A"})
	preset := Selection{
		Background:   "พื้นหลังสีฟ้า",
		ClothesColor: "สีดำ",
		Lighting:     []string{"B", "B", "C"},
	}

	got := reduce(t, current, PresetLoaded{Styles: preset})
	assert.Empty(t, got.Pose)
	assert.Equal(t, "พื้นหลังสีฟ้า", got.Background)
	assert.Empty(t, got.ClothesColor, "color without clothes is dropped")
	assert.Equal(t, []string{"B", "C"}, got.Lighting)

	assert.True(t, reduce(t, got, SelectionCleared{}).IsEmpty())
}

func TestActionForUnknownCategory(t *testing.T) {
	_, err := ActionFor("shoes", "x")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestSelectionHas(t *testing.T) {
	sel := reduce(t, Selection{}, BackgroundSelected{"ขาว"}, RetouchingToggled{"ผิวเนียน"})
	assert.True(t, sel.Has(catalog.Background, "ขาว"))
	assert.True(t, sel.Has(catalog.Retouching, "ผิวเนียน"))
	assert.False(t, sel.Has(catalog.Pose, ""))
}
