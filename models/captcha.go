package models

type CaptchaQuestion struct {
	ID       uint         `gorm:"primaryKey" bson:"_id" json:"id"`
	Question string       `gorm:"not null" bson:"question" json:"question"`
	Answer   string       `gorm:"not null" bson:"answer" json:"-"`
	Status   RecordStatus `gorm:"size:16;not null;default:active" bson:"status" json:"-"`
}

func (CaptchaQuestion) TableName() string { return "captcha_questions" }

// DefaultCaptchaQuestions are seeded when the table is empty.
var DefaultCaptchaQuestions = []CaptchaQuestion{
	{Question: "كم يساوي: 2 + 3 = ؟", Answer: "5"},
	{Question: "كم يساوي: 7 - 2 = ؟", Answer: "5"},
	{Question: "كم يساوي: 3 × 2 = ؟", Answer: "6"},
	{Question: "كم يساوي: 8 ÷ 2 = ؟", Answer: "4"},
	{Question: "كم عدد أيام الأسبوع؟", Answer: "7"},
	{Question: "كم عدد حروف كلمة 'طالب'؟", Answer: "4"},
	{Question: "كم يساوي: 10 - 5 = ؟", Answer: "5"},
	{Question: "كم يساوي: 4 + 1 = ؟", Answer: "5"},
}
