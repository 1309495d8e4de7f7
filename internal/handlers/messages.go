package handlers

const (
	welcomeText = "📸 Photo Studio\n\n" +
		"ส่งรูปใบหน้าของคุณ แล้วเลือกสไตล์จากเมนูด้านล่าง\n" +
		"ส่งสองรูปพร้อมกัน (อัลบั้ม) เพื่อใช้รูปที่สองเป็นตัวอย่างชุด"

	helpText = "📸 วิธีใช้\n\n" +
		"/mode [studio|headshot|repair|editor] - เปลี่ยนโหมด\n" +
		"/details <ข้อความ> - รายละเอียดเพิ่มเติม\n" +
		"/prompt - ดูพรอมต์ที่จะส่งให้ AI\n" +
		"/generate - สร้างภาพ\n" +
		"/explain - อธิบายว่า AI จะทำอะไร\n" +
		"/save <ชื่อ> - บันทึกสไตล์\n" +
		"/presets - สไตล์ที่บันทึกไว้\n" +
		"/reset - เริ่มใหม่\n" +
		"/cancel - ยกเลิกการรอข้อความ"

	msgUnknownCommand  = "❌ ไม่รู้จักคำสั่งนี้ ใช้ /help"
	msgUnknownMode     = "❌ ไม่รู้จักโหมดนี้ ใช้ studio, headshot, repair หรือ editor"
	msgReset           = "✅ เริ่มต้นใหม่แล้ว"
	msgCancelled       = "✅ ยกเลิกแล้ว"
	msgDownloadFailed  = "❌ ไม่สามารถดาวน์โหลดรูปภาพได้"
	msgSendPhotoFirst  = "📷 กรุณาส่งรูปภาพก่อน หรือเลือกเมนูจากแผงควบคุม"
	msgGenerating      = "🎨 กำลังสร้างภาพ กรุณารอสักครู่..."
	msgRateLimited     = "⏳ กรุณารอ %d วินาทีแล้วลองใหม่"
	msgBusy            = "⏳ กำลังทำงานอยู่ กรุณารอสักครู่"
	msgAskPresetName   = "📝 ส่งชื่อสำหรับสไตล์นี้ (ยกเลิก: /cancel)"
	msgPresetsDisabled = "❌ ไม่ได้เปิดใช้การบันทึกสไตล์"
	msgNotYourPanel    = "เมนูนี้ไม่ใช่ของคุณ"
	msgWaitGender      = "กรุณารอ AI วิเคราะห์เพศก่อน"
	msgPresetLoaded    = "โหลดสไตล์แล้ว"
	msgDeleted         = "ลบแล้ว"
)

var askTexts = map[string]string{
	awaitDetails:            "📝 ส่งรายละเอียดเพิ่มเติม (ยกเลิก: /cancel)",
	awaitMemorialOutfit:     "👔 พิมพ์ชุดที่ต้องการ (ยกเลิก: /cancel)",
	awaitMemorialBackground: "🖼 พิมพ์ฉากหลังที่ต้องการ (ยกเลิก: /cancel)",
	awaitEditor:             "✏️ พิมพ์คำสั่งแก้ไขภาพ (ยกเลิก: /cancel)",
	awaitPresetName:         msgAskPresetName,
}
