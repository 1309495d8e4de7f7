package studio

import (
	"errors"

	"photo-studio/internal/catalog"
)

const (
	msgNeedFace         = "การสร้างพรอมต์จำเป็นต้องใช้รูปภาพใบหน้าอ้างอิง"
	msgWaitGender       = "กรุณารอ AI วิเคราะห์เพศก่อน จึงจะสร้างพรอมต์ได้"
	msgWaitGenderRepair = "กรุณารอ AI วิเคราะห์เพศให้เสร็จสิ้นก่อน"
	msgNeedImage        = "กรุณาอัปโหลดรูปภาพที่ต้องการแก้ไข"
	msgMemorialInputs   = "กรุณาเลือกชุด (จากสไตล์หรือจากภาพ) และฉากหลังสำหรับภาพหน้าตรง"
	msgChooseRepair     = "กรุณาเลือกประเภทการแก้ไขก่อน (ฟื้นฟูสภาพ หรือ สร้างภาพหน้าตรง)"
	msgNeedInstruction  = "กรุณาใส่คำสั่งสำหรับแก้ไขภาพ"
	msgAnalyzeNeedImage = "กรุณาอัปโหลดรูปภาพเพื่อวิเคราะห์"
	msgEnhanceNeedText  = "กรุณาใส่พรอมต์เพื่อปรับปรุง"
)

func invalid(msg string) error { return &ValidationError{Message: msg} }

func invalidGender(msg string) error { return &ValidationError{Message: msg, GenderSlot: true} }

// buildPrompt validates st for its mode and returns the prompt to send.
func buildPrompt(st State, cat *catalog.Catalog) (string, error) {
	switch st.Mode {
	case ModeStudio, ModeHeadshot:
		if !st.HasPrimary() {
			return "", invalid(msgNeedFace)
		}
		if !st.Gender.Valid() {
			return "", invalidGender(msgWaitGender)
		}
		return BuildPortraitPrompt(PortraitParams{
			Gender:         st.Gender,
			Selection:      st.Selection,
			Details:        st.Details,
			HasFaceImage:   true,
			HasOutfitImage: st.Mode == ModeStudio && st.HasOutfit(),
			AspectRatio:    st.AspectRatio,
			HalfBody:       st.Mode == ModeHeadshot,
			Catalog:        cat,
		})

	case ModeRepair:
		if !st.HasPrimary() {
			return "", invalid(msgNeedImage)
		}
		switch st.RepairSubMode {
		case RepairRestore:
			return BuildRestorePrompt(), nil
		case RepairEnhance:
			return BuildEnhancePrompt(st.NightMode), nil
		case RepairMemorial:
			if !st.Gender.Valid() {
				return "", invalidGender(msgWaitGenderRepair)
			}
			if (st.MemorialOutfit == "" && !st.HasOutfit()) || st.MemorialBackground == "" {
				return "", invalid(msgMemorialInputs)
			}
			return BuildMemorialPrompt(MemorialParams{
				Gender:         st.Gender,
				Outfit:         st.MemorialOutfit,
				Background:     st.MemorialBackground,
				HasOutfitImage: st.HasOutfit(),
				Catalog:        cat,
			})
		}
		return "", invalid(msgChooseRepair)

	case ModeEditor:
		if !st.HasPrimary() {
			return "", invalid(msgNeedImage)
		}
		prompt, err := BuildEditorPrompt(st.EditorPrompt)
		if errors.Is(err, ErrEmptyInstruction) {
			return "", invalid(msgNeedInstruction)
		}
		return prompt, err
	}
	return "", ErrUnknownMode
}
