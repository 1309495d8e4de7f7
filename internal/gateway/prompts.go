package gateway

// Instructions shared by every backend for the text-side operations.
const (
	OutfitLabel = "ใช้ภาพเสื้อผ้าต่อไปนี้เป็นตัวอย่างทรงเสื้อและเนื้อผ้า"

	GenderInstruction = `วิเคราะห์บุคคลหลักในภาพนี้และระบุเพศ
ตอบกลับเป็น JSON เท่านั้นในรูปแบบ {"gender":"male"} หรือ {"gender":"female"}
ห้ามเขียนข้อความอื่น`

	DescribeInstruction = `อธิบายภาพนี้อย่างละเอียดเป็นภาษาไทย เพื่อใช้เป็นคำสั่งสำหรับแก้ไขภาพ
ระบุบุคคล เสื้อผ้า ฉากหลัง แสง และองค์ประกอบสำคัญ
ตอบเป็นข้อความล้วน ไม่ต้องใส่หัวข้อหรือเครื่องหมาย markdown`

	EnhanceInstruction = `คุณเป็นผู้ช่วยเขียนคำสั่งแก้ไขภาพ
ปรับปรุงคำสั่งต่อไปนี้ให้ชัดเจน เจาะจง และเหมาะกับการแก้ไขภาพด้วย AI โดยคงความตั้งใจเดิมของผู้ใช้
ตอบกลับเฉพาะคำสั่งที่ปรับปรุงแล้วเป็นภาษาไทย ไม่ต้องอธิบายเพิ่มเติม

คำสั่งเดิม:
`

	ExplainInstruction = `อธิบายเป็นภาษาไทยแบบเข้าใจง่ายว่า AI จะทำอะไรกับรูปภาพตามคำสั่งต่อไปนี้
สรุปเป็นข้อๆ ไม่เกิน 6 ข้อ

คำสั่ง:
`
)
