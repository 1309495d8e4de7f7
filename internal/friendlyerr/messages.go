package friendlyerr

// User-facing texts. The studio is Thai-only.
const (
	msgDefault           = "เกิดข้อผิดพลาดที่ไม่คาดคิดระหว่างการสร้างภาพ กรุณาลองใหม่อีกครั้งค่ะ หากยังพบปัญหาเดิม กรุณาติดต่อผู้ดูแลค่ะ"
	msgAnalysisMalformed = "AI ไม่สามารถวิเคราะห์เพศได้ในขณะนี้เนื่องจากมีปัญหาในการประมวลผลข้อมูล กรุณาลองใหม่อีกครั้งค่ะ"
	msgAuth              = "API Key ไม่ถูกต้องหรือไม่ได้ตั้งค่า กรุณาติดต่อผู้ดูแลระบบเพื่อแก้ไขค่ะ"
	msgRateLimit         = "ขออภัยค่ะ, มีผู้ใช้งานหนาแน่น (โควต้าเต็ม) กรุณารอสักครู่แล้วลองใหม่อีกครั้งตามเวลาที่แสดงบนปุ่มนะคะ"
	msgSafetyFormat      = "AI ปฏิเสธการสร้างภาพเนื่องจากขัดต่อนโยบายความปลอดภัย%s กรุณาลองเปลี่ยนรูปภาพอ้างอิงหรือปรับคำสั่งพิเศษนะคะ"
	msgSafetyCategory    = " (หมวดหมู่: %s)"
	msgFaceNotDetected   = "AI ไม่สามารถตรวจจับใบหน้าที่ชัดเจนในภาพได้ กรุณาใช้ภาพที่เห็นใบหน้าตรงและชัดเจน ไม่มีสิ่งบดบังค่ะ"
	msgImageTooSmall     = "รูปภาพที่อัปโหลดมีขนาดเล็กเกินไป กรุณาใช้รูปภาพที่มีความละเอียดสูงกว่านี้ค่ะ"
	msgImageTooLarge     = "รูปภาพที่อัปโหลดมีขนาดใหญ่เกินไป กรุณาลดขนาดรูปภาพแล้วลองใหม่อีกครั้งค่ะ"
	msgImageCorrupt      = "รูปภาพที่อัปโหลดเสียหายหรือไม่รองรับ กรุณาลองใช้ไฟล์ .jpeg หรือ .png อื่นๆ ค่ะ"
	msgInvalidArgument   = "AI พบว่าข้อมูลที่ส่งไปไม่ถูกต้อง อาจเกิดจากรูปภาพเสียหายหรือคำสั่งพิเศษมีความซับซ้อนเกินไป กรุณาลองใหม่อีกครั้งด้วยรูปภาพหรือคำสั่งที่ง่ายขึ้นค่ะ"
	msgNoImageWithText   = "AI ไม่สามารถสร้างรูปภาพได้ และตอบกลับมาว่า: \"%s\" กรุณาลองปรับเปลี่ยนสไตล์หรือรูปภาพค่ะ"
	msgNoExplanation     = "ไม่มีคำอธิบาย"
	msgNoImage           = "AI ไม่สามารถสร้างรูปภาพได้ในครั้งนี้ อาจเป็นปัญหาชั่วคราว หรือรูปภาพอ้างอิงไม่ชัดเจน กรุณาลองใช้รูปภาพอื่นที่เห็นใบหน้าชัดเจนค่ะ"
	msgNotFound          = "ไม่พบโมเดล AI ที่ร้องขอ อาจเป็นปัญหาชั่วคราวของระบบ กรุณาลองใหม่อีกครั้งในภายหลังค่ะ"
	msgNetwork           = "ไม่สามารถเชื่อมต่อกับเซิร์ฟเวอร์ได้ กรุณาตรวจสอบการเชื่อมต่ออินเทอร์เน็ตแล้วลองใหม่อีกครั้งค่ะ"
	msgServer            = "เกิดข้อผิดพลาดฝั่งเซิร์ฟเวอร์ของ AI ชั่วคราว กรุณารอประมาณ 1-2 นาทีแล้วลองใหม่อีกครั้งค่ะ"
)

// Prefixes for errors raised outside the generation slot.
const (
	ScopeGender  = "ไม่สามารถวิเคราะห์เพศได้"
	ScopeAnalyze = "การวิเคราะห์ภาพล้มเหลว"
	ScopeEnhance = "การปรับปรุงพรอมต์ล้มเหลว"
	ScopeExplain = "การอธิบายพรอมต์ล้มเหลว"
)
