package webapi

import (
	"photo-studio/internal/catalog"
	"photo-studio/internal/studio"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type apiError struct {
	Error      string `json:"error"`
	Category   string `json:"category,omitempty"`
	GenderSlot bool   `json:"gender_slot,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type stateView struct {
	studio.State
	HasPrimary  bool   `json:"has_primary"`
	HasOutfit   bool   `json:"has_outfit"`
	CanGenerate bool   `json:"can_generate"`
	Result      string `json:"result,omitempty"`
}

func newStateView(st studio.State) stateView {
	v := stateView{
		State:       st,
		HasPrimary:  st.HasPrimary(),
		HasOutfit:   st.HasOutfit(),
		CanGenerate: st.CanGenerate(),
	}
	if st.HasResult() {
		v.Result = st.Result.DataURL()
	}
	return v
}

type sessionView struct {
	ID    string    `json:"id"`
	State stateView `json:"state"`
}

type styleView struct {
	catalog.Style
	Colors []catalog.ColorOption `json:"colors,omitempty"`
}

type categoryView struct {
	catalog.CategoryInfo
	Options []styleView `json:"options,omitempty"`
	Male    []styleView `json:"male,omitempty"`
	Female  []styleView `json:"female,omitempty"`
}

type catalogView struct {
	Categories   []categoryView       `json:"categories"`
	Memorial     memorialView         `json:"memorial"`
	Modes        []studio.Mode        `json:"modes"`
	AspectRatios []studio.AspectRatio `json:"aspect_ratios"`
}

type memorialView struct {
	Outfits     []styleView `json:"outfits"`
	Backgrounds []styleView `json:"backgrounds"`
}

func newCatalogView(cat *catalog.Catalog) catalogView {
	styles := func(in []catalog.Style) []styleView {
		out := make([]styleView, 0, len(in))
		for _, s := range in {
			out = append(out, styleView{Style: s, Colors: cat.Palette(s)})
		}
		return out
	}

	v := catalogView{
		Memorial: memorialView{
			Outfits:     styles(cat.MemorialOutfits()),
			Backgrounds: styles(cat.MemorialBackgrounds()),
		},
		Modes:        studio.Modes,
		AspectRatios: studio.AspectRatios,
	}
	for _, info := range cat.Categories() {
		cv := categoryView{CategoryInfo: info}
		if cat.IsGendered(info.ID) {
			cv.Male = styles(cat.Options(info.ID, catalog.Male))
			cv.Female = styles(cat.Options(info.ID, catalog.Female))
		} else {
			cv.Options = styles(cat.Options(info.ID, ""))
		}
		v.Categories = append(v.Categories, cv)
	}
	return v
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type repairRequest struct {
	SubMode string `json:"sub_mode"`
}

type imageRequest struct {
	DataURL string `json:"data_url"`
}

// styleRequest is one selection action. Category and Value select or toggle
// an option; Clear empties the selection.
type styleRequest struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Clear    bool   `json:"clear"`
}

// fieldsRequest updates any subset of the free-form fields.
type fieldsRequest struct {
	Details            *string `json:"details"`
	AspectRatio        *string `json:"aspect_ratio"`
	EditorPrompt       *string `json:"editor_prompt"`
	MemorialOutfit     *string `json:"memorial_outfit"`
	MemorialBackground *string `json:"memorial_background"`
	NightMode          *bool   `json:"night_mode"`
}

type presetRequest struct {
	Name string `json:"name"`
}

type textResponse struct {
	Text  string    `json:"text"`
	State stateView `json:"state"`
}
