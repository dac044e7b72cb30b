package models

import (
	"fmt"
	"strings"
)

// FileCategory values are the Arabic labels stored in the database.
type FileCategory string

const (
	CategoryExams         FileCategory = "اختبارات"
	CategoryGrades        FileCategory = "درجات"
	CategoryHomework      FileCategory = "واجبات"
	CategoryNotes         FileCategory = "ملاحظات"
	CategoryAlerts        FileCategory = "إنذارات"
	CategoryParticipation FileCategory = "مشاركات"
	CategoryCertificates  FileCategory = "شهادات"
	CategoryAttendance    FileCategory = "حضور وغياب"
	CategoryBehavior      FileCategory = "سلوك"
	CategoryOther         FileCategory = "أخرى"
)

// FileCategories is in display order.
var FileCategories = []FileCategory{
	CategoryExams,
	CategoryGrades,
	CategoryHomework,
	CategoryNotes,
	CategoryAlerts,
	CategoryParticipation,
	CategoryCertificates,
	CategoryAttendance,
	CategoryBehavior,
	CategoryOther,
}

var categoryKeys = map[string]FileCategory{
	"exams":         CategoryExams,
	"grades":        CategoryGrades,
	"homework":      CategoryHomework,
	"notes":         CategoryNotes,
	"alerts":        CategoryAlerts,
	"participation": CategoryParticipation,
	"certificates":  CategoryCertificates,
	"attendance":    CategoryAttendance,
	"behavior":      CategoryBehavior,
	"other":         CategoryOther,
}

// ParseFileCategory accepts either the Arabic label or its English key.
// An empty input means "other".
func ParseFileCategory(raw string) (FileCategory, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategoryOther, nil
	}
	for _, c := range FileCategories {
		if string(c) == raw {
			return c, nil
		}
	}
	if c, ok := categoryKeys[strings.ToLower(raw)]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown file category %q", raw)
}

func (c FileCategory) Key() string {
	for k, v := range categoryKeys {
		if v == c {
			return k
		}
	}
	return ""
}
