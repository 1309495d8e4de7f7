package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photo-studio/internal/catalog"
	"photo-studio/internal/presets"
	"photo-studio/internal/session"
	"photo-studio/internal/studio"
	"photo-studio/internal/telegram"
)

const panelCallbackPrefix = "ps"

const (
	menuMain        = "main"
	menuMode        = "mode"
	menuSubMode     = "sub"
	menuColor       = "color"
	menuRatio       = "ratio"
	menuPresets     = "presets"
	menuMemoOutfit  = "mo"
	menuMemoBg      = "mb"
	menuCategoryPfx = "cat."
)

const (
	awaitDetails            = "details"
	awaitMemorialOutfit     = "memorial_outfit"
	awaitMemorialBackground = "memorial_background"
	awaitEditor             = "editor"
	awaitPresetName         = "preset_name"
)

func modeTitle(m studio.Mode) string {
	switch m {
	case studio.ModeStudio:
		return "สตูดิโอ"
	case studio.ModeHeadshot:
		return "รูปหน้าตรง"
	case studio.ModeRepair:
		return "ซ่อมแซมภาพ"
	case studio.ModeEditor:
		return "แก้ไขภาพ"
	}
	return string(m)
}

func subModeTitle(sm studio.RepairSubMode) string {
	switch sm {
	case studio.RepairRestore:
		return "ฟื้นฟูสภาพ"
	case studio.RepairMemorial:
		return "สร้างภาพหน้าตรง"
	case studio.RepairEnhance:
		return "เพิ่มความคมชัด"
	}
	return "ยังไม่ได้เลือก"
}

var repairSubModes = []studio.RepairSubMode{studio.RepairRestore, studio.RepairMemorial, studio.RepairEnhance}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, panelCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, msgNotYourPanel, true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	key := SessionKey(chatID, ownerID)
	username := q.From.UserName

	h.sessions.Update(key, username, func(e *session.Entry) { e.PanelMessageID = q.Message.MessageID })
	entry := h.sessions.Get(key, username)
	sess := entry.Session

	switch action {
	case "gen":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.generate(ctx, chatID, ownerID, username)
	case "explain":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.explain(ctx, chatID, ownerID, username)
	case "prompt":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		prompt, err := sess.BuildPrompt()
		if err != nil {
			return h.tg.SendText(chatID, "❌ "+err.Error())
		}
		return h.tg.SendText(chatID, prompt)
	case "ask":
		if len(args) < 1 {
			return nil
		}
		field := args[0]
		_ = h.tg.AnswerCallback(q.ID, "", false)
		h.setAwaiting(key, username, field)
		return h.tg.SendText(chatID, askTexts[field])
	}

	notice, err := h.applyPanelAction(ctx, key, username, entry, action, args)
	if err != nil {
		_ = h.tg.AnswerCallback(q.ID, callbackError(err), true)
	} else {
		_ = h.tg.AnswerCallback(q.ID, notice, false)
	}

	return h.renderPanel(chatID, ownerID, true)
}

// applyPanelAction handles the buttons that only change session state.
func (h *Handler) applyPanelAction(ctx context.Context, key, username string, entry *session.Entry, action string, args []string) (string, error) {
	sess := entry.Session
	st := sess.Snapshot()
	cat := sess.Catalog()

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	index := func(i int) int {
		n, err := strconv.Atoi(arg(i))
		if err != nil {
			return -1
		}
		return n
	}

	switch action {
	case "menu":
		h.setMenu(key, username, strings.Join(args, ":"))
	case "mode":
		h.setMenu(key, username, menuMain)
		if m, ok := studio.ParseMode(arg(0)); ok {
			return "", sess.SetMode(m)
		}
	case "sub":
		h.setMenu(key, username, menuMain)
		if sm, ok := studio.ParseRepairSubMode(arg(0)); ok {
			return "", sess.SetRepairSubMode(sm)
		}
	case "sel":
		category := catalog.Category(arg(0))
		opts := cat.Options(category, st.Gender)
		i := index(1)
		if i < 0 || i >= len(opts) {
			if cat.IsGendered(category) && !st.Gender.Valid() {
				return "", studio.ErrGenderRequired
			}
			return "", nil
		}
		a, err := studio.ActionFor(category, opts[i].Label)
		if err != nil {
			return "", err
		}
		if info, ok := cat.Info(category); ok && !info.Multi {
			h.setMenu(key, username, menuMain)
		}
		return "", sess.Dispatch(a)
	case "color":
		palette := clothesPalette(cat, st)
		if i := index(0); i >= 0 && i < len(palette) {
			h.setMenu(key, username, menuMain)
			return "", sess.Dispatch(studio.ClothesColorSelected{Value: palette[i].Value})
		}
	case "clear":
		return "", sess.Dispatch(studio.SelectionCleared{})
	case "outfit_clear":
		return "", sess.ClearOutfitImage()
	case "ratio":
		h.setMenu(key, username, menuMain)
		if i := index(0); i >= 0 && i < len(studio.AspectRatios) {
			return "", sess.SetAspectRatio(studio.AspectRatios[i])
		}
	case "night":
		return "", sess.SetNightMode(!st.NightMode)
	case "mo":
		h.setMenu(key, username, menuMain)
		if opts := cat.MemorialOutfits(); index(0) >= 0 && index(0) < len(opts) {
			return "", sess.SetMemorialOutfit(opts[index(0)].Label)
		}
	case "mb":
		h.setMenu(key, username, menuMain)
		if opts := cat.MemorialBackgrounds(); index(0) >= 0 && index(0) < len(opts) {
			return "", sess.SetMemorialBackground(opts[index(0)].Label)
		}
	case "analyze":
		return "", sess.AnalyzeImage(ctx)
	case "enhance":
		return "", sess.EnhanceEditorPrompt(ctx)
	case "preset", "pdel":
		if h.presets == nil {
			return "", nil
		}
		book := h.presets.Book(presetOwner(ownerFromKey(entry.Key)))
		list, err := book.List(ctx)
		if err != nil {
			return "", err
		}
		i := index(0)
		if i < 0 || i >= len(list) {
			return "", nil
		}
		if action == "pdel" {
			if err := book.Delete(ctx, list[i].Name); err != nil {
				h.logger.Warn().Err(err).Msg("preset delete failed")
				return "", errors.New(presets.MsgDeleteFailed)
			}
			return msgDeleted, nil
		}
		h.setMenu(key, username, menuMain)
		return msgPresetLoaded, sess.Dispatch(studio.PresetLoaded{Styles: list[i].Styles})
	case "close":
		h.sessions.Update(key, username, func(e *session.Entry) {
			e.Menu = menuMain
			e.Awaiting = ""
		})
	}
	return "", nil
}

func callbackError(err error) string {
	var vErr *studio.ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.Is(err, studio.ErrGenderRequired):
		return msgWaitGender
	case errors.Is(err, studio.ErrBusy):
		return msgBusy
	case errors.Is(err, studio.ErrWrongMode), errors.Is(err, studio.ErrStale):
		return "OK"
	}
	return err.Error()
}

// ownerFromKey recovers the user id from a "tg:chat:user" session key.
func ownerFromKey(key string) int64 {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return 0
	}
	id, _ := strconv.ParseInt(key[i+1:], 10, 64)
	return id
}

func clothesPalette(cat *catalog.Catalog, st studio.State) []catalog.ColorOption {
	if st.Selection.Clothes == "" {
		return nil
	}
	style, ok := cat.Lookup(catalog.Clothes, st.Gender, st.Selection.Clothes)
	if !ok {
		return nil
	}
	return cat.Palette(style)
}

func (h *Handler) renderPanel(chatID int64, userID int64, edit bool) error {
	key := SessionKey(chatID, userID)
	entry := h.sessions.Get(key, "")
	st := entry.Session.Snapshot()

	var list []presets.Preset
	if entry.Menu == menuPresets && h.presets != nil {
		var err error
		if list, err = h.presets.Book(presetOwner(userID)).List(context.Background()); err != nil {
			h.logger.Warn().Err(err).Msg("preset list failed")
		}
	}

	text := panelText(entry.Session.Catalog(), st, entry.Awaiting)
	kb := panelKeyboard(userID, entry.Session.Catalog(), st, entry.Menu, list)

	if edit && entry.PanelMessageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, entry.PanelMessageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.sessions.Update(key, "", func(e *session.Entry) { e.PanelMessageID = msgID })
	return nil
}

func panelText(cat *catalog.Catalog, st studio.State, awaiting string) string {
	var b strings.Builder
	b.WriteString("📸 Photo Studio\n\n")
	b.WriteString(fmt.Sprintf("โหมด: %s\n", modeTitle(st.Mode)))
	if st.Mode == studio.ModeRepair {
		b.WriteString(fmt.Sprintf("ประเภท: %s\n", subModeTitle(st.RepairSubMode)))
	}

	if st.HasPrimary() {
		b.WriteString("รูปภาพ: ✅\n")
	} else {
		b.WriteString("รูปภาพ: (ยังไม่มี)\n")
	}
	if st.HasOutfit() {
		b.WriteString("ภาพชุด: ✅\n")
	}

	switch {
	case st.AnalyzingGender:
		b.WriteString("เพศ: กำลังวิเคราะห์...\n")
	case st.GenderError != "":
		b.WriteString("เพศ: ⚠️ " + st.GenderError + "\n")
	case st.Gender.Valid():
		b.WriteString("เพศ: " + string(st.Gender) + "\n")
	}

	switch st.Mode {
	case studio.ModeStudio, studio.ModeHeadshot:
		for _, info := range cat.Categories() {
			if v := st.Selection.Value(info.ID); v != "" {
				if info.ID == catalog.Clothes && st.Selection.ClothesColor != "" {
					v += " (" + st.Selection.ClothesColor + ")"
				}
				b.WriteString(fmt.Sprintf("%s: %s\n", info.Title, v))
			}
		}
		b.WriteString(fmt.Sprintf("สัดส่วนภาพ: %s\n", st.AspectRatio))
		if st.Details != "" {
			b.WriteString("รายละเอียด: " + truncateLine(st.Details, 80) + "\n")
		}
	case studio.ModeRepair:
		if st.RepairSubMode == studio.RepairMemorial {
			b.WriteString(fmt.Sprintf("ชุด: %s\n", orDash(st.MemorialOutfit)))
			b.WriteString(fmt.Sprintf("ฉากหลัง: %s\n", orDash(st.MemorialBackground)))
		}
		if st.RepairSubMode == studio.RepairEnhance {
			b.WriteString(fmt.Sprintf("โหมดกลางคืน: %s\n", onOff(st.NightMode)))
		}
	case studio.ModeEditor:
		b.WriteString("คำสั่ง: " + orDash(truncateLine(st.EditorPrompt, 200)) + "\n")
	}

	if st.RetryAfter > 0 {
		b.WriteString(fmt.Sprintf("\n⏳ รอ %d วินาทีก่อนสร้างภาพอีกครั้ง\n", st.RetryAfter))
	}
	if st.Error != "" {
		b.WriteString("\n❌ " + st.Error + "\n")
	}
	if text, ok := askTexts[awaiting]; ok {
		b.WriteString("\n" + text + "\n")
	}

	return strings.TrimSpace(b.String())
}

func panelKeyboard(ownerID int64, cat *catalog.Catalog, st studio.State, menu string, list []presets.Preset) telegram.Keyboard {
	switch {
	case menu == menuMode:
		var buttons []telegram.Button
		for _, m := range studio.Modes {
			buttons = append(buttons, telegram.NewButton(check(m == st.Mode, modeTitle(m)), cb(ownerID, "mode", string(m))))
		}
		return withBack(ownerID, chunk(buttons, 2))
	case menu == menuSubMode:
		var buttons []telegram.Button
		for _, sm := range repairSubModes {
			buttons = append(buttons, telegram.NewButton(check(sm == st.RepairSubMode, subModeTitle(sm)), cb(ownerID, "sub", string(sm))))
		}
		return withBack(ownerID, chunk(buttons, 1))
	case menu == menuColor:
		var buttons []telegram.Button
		for i, c := range clothesPalette(cat, st) {
			buttons = append(buttons, telegram.NewButton(check(c.Value == st.Selection.ClothesColor, c.Label), cb(ownerID, "color", strconv.Itoa(i))))
		}
		return withBack(ownerID, chunk(buttons, 3))
	case menu == menuRatio:
		var buttons []telegram.Button
		for i, r := range studio.AspectRatios {
			buttons = append(buttons, telegram.NewButton(check(r == st.AspectRatio, string(r)), cb(ownerID, "ratio", strconv.Itoa(i))))
		}
		return withBack(ownerID, chunk(buttons, 4))
	case menu == menuMemoOutfit:
		return styleMenu(ownerID, cat.MemorialOutfits(), st.MemorialOutfit, "mo", awaitMemorialOutfit)
	case menu == menuMemoBg:
		return styleMenu(ownerID, cat.MemorialBackgrounds(), st.MemorialBackground, "mb", awaitMemorialBackground)
	case menu == menuPresets:
		var rows [][]telegram.Button
		for i, p := range list {
			rows = append(rows, telegram.NewRow(
				telegram.NewButton(p.Name, cb(ownerID, "preset", strconv.Itoa(i))),
				telegram.NewButton("🗑", cb(ownerID, "pdel", strconv.Itoa(i))),
			))
		}
		rows = append(rows, telegram.NewRow(telegram.NewButton("💾 บันทึกสไตล์ปัจจุบัน", cb(ownerID, "ask", awaitPresetName))))
		return withBack(ownerID, rows)
	case strings.HasPrefix(menu, menuCategoryPfx):
		category := catalog.Category(strings.TrimPrefix(menu, menuCategoryPfx))
		var buttons []telegram.Button
		for i, s := range cat.Options(category, st.Gender) {
			buttons = append(buttons, telegram.NewButton(check(st.Selection.Has(category, s.Label), s.Label), cb(ownerID, "sel", string(category), strconv.Itoa(i))))
		}
		return withBack(ownerID, chunk(buttons, 2))
	}

	return mainKeyboard(ownerID, cat, st)
}

func mainKeyboard(ownerID int64, cat *catalog.Catalog, st studio.State) telegram.Keyboard {
	rows := [][]telegram.Button{
		telegram.NewRow(telegram.NewButton("โหมด: "+modeTitle(st.Mode), cb(ownerID, "menu", menuMode))),
	}

	switch st.Mode {
	case studio.ModeStudio, studio.ModeHeadshot:
		var buttons []telegram.Button
		for _, info := range cat.Categories() {
			if info.ID == catalog.Clothes && st.Mode == studio.ModeStudio && st.HasOutfit() {
				continue
			}
			label := info.Title
			if info.Gendered && !st.Gender.Valid() {
				label = "🔒 " + label
			}
			buttons = append(buttons, telegram.NewButton(label, cb(ownerID, "menu", menuCategoryPfx+string(info.ID))))
		}
		if len(clothesPalette(cat, st)) > 0 {
			buttons = append(buttons, telegram.NewButton("🎨 สีชุด", cb(ownerID, "menu", menuColor)))
		}
		rows = append(rows, chunk(buttons, 2)...)
		rows = append(rows,
			telegram.NewRow(
				telegram.NewButton("สัดส่วน "+string(st.AspectRatio), cb(ownerID, "menu", menuRatio)),
				telegram.NewButton("📝 รายละเอียด", cb(ownerID, "ask", awaitDetails)),
			),
			telegram.NewRow(
				telegram.NewButton("⭐ สไตล์ที่บันทึก", cb(ownerID, "menu", menuPresets)),
				telegram.NewButton("ล้างตัวเลือก", cb(ownerID, "clear")),
			),
		)
		if st.HasOutfit() {
			rows = append(rows, telegram.NewRow(telegram.NewButton("ลบภาพชุด", cb(ownerID, "outfit_clear"))))
		}
	case studio.ModeRepair:
		rows = append(rows, telegram.NewRow(telegram.NewButton("ประเภท: "+subModeTitle(st.RepairSubMode), cb(ownerID, "menu", menuSubMode))))
		switch st.RepairSubMode {
		case studio.RepairMemorial:
			rows = append(rows, telegram.NewRow(
				telegram.NewButton("👔 ชุด", cb(ownerID, "menu", menuMemoOutfit)),
				telegram.NewButton("🖼 ฉากหลัง", cb(ownerID, "menu", menuMemoBg)),
			))
		case studio.RepairEnhance:
			rows = append(rows, telegram.NewRow(telegram.NewButton("🌙 โหมดกลางคืน: "+onOff(st.NightMode), cb(ownerID, "night"))))
		}
	case studio.ModeEditor:
		rows = append(rows,
			telegram.NewRow(telegram.NewButton("✏️ พิมพ์คำสั่ง", cb(ownerID, "ask", awaitEditor))),
			telegram.NewRow(
				telegram.NewButton("🔍 วิเคราะห์ภาพ", cb(ownerID, "analyze")),
				telegram.NewButton("✨ ปรับปรุงคำสั่ง", cb(ownerID, "enhance")),
			),
		)
	}

	genLabel := "🎨 สร้างภาพ"
	if st.RetryAfter > 0 {
		genLabel = fmt.Sprintf("⏳ %d วินาที", st.RetryAfter)
	}
	rows = append(rows,
		telegram.NewRow(
			telegram.NewButton("📄 พรอมต์", cb(ownerID, "prompt")),
			telegram.NewButton("💡 อธิบาย", cb(ownerID, "explain")),
		),
		telegram.NewRow(telegram.NewButton(genLabel, cb(ownerID, "gen"))),
	)

	return telegram.NewKeyboard(rows...)
}

func styleMenu(ownerID int64, opts []catalog.Style, current, action, askField string) telegram.Keyboard {
	var buttons []telegram.Button
	for i, s := range opts {
		buttons = append(buttons, telegram.NewButton(check(s.Label == current, s.Label), cb(ownerID, action, strconv.Itoa(i))))
	}
	rows := chunk(buttons, 2)
	rows = append(rows, telegram.NewRow(telegram.NewButton("✏️ พิมพ์เอง", cb(ownerID, "ask", askField))))
	return withBack(ownerID, rows)
}

func withBack(ownerID int64, rows [][]telegram.Button) telegram.Keyboard {
	rows = append(rows, telegram.NewRow(telegram.NewButton("⬅ กลับ", cb(ownerID, "menu", menuMain))))
	return telegram.NewKeyboard(rows...)
}

func chunk(buttons []telegram.Button, size int) [][]telegram.Button {
	var rows [][]telegram.Button
	for len(buttons) > 0 {
		n := min(size, len(buttons))
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", panelCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func check(selected bool, label string) string {
	if selected {
		return "✅ " + label
	}
	return label
}

func onOff(v bool) string {
	if v {
		return "เปิด"
	}
	return "ปิด"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
