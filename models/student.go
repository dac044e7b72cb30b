package models

import (
	"encoding/json"
	"time"
)

type Student struct {
	ID            uint         `gorm:"primaryKey" bson:"_id" json:"id"`
	CivilID       string       `gorm:"size:10;not null;index:idx_students_teacher_civil" bson:"civil_id" json:"civilId"`
	StudentName   string       `gorm:"not null" bson:"student_name" json:"studentName"`
	Grade         string       `bson:"grade" json:"grade"`
	ClassNumber   int          `bson:"class_number" json:"classNumber"`
	Subject       string       `bson:"subject" json:"subject"`
	TeacherID     uint         `gorm:"not null;index:idx_students_teacher_civil" bson:"teacher_id" json:"teacherId"`
	FolderCreated bool         `gorm:"not null;default:false" bson:"folder_created" json:"folderCreated"`
	DriveFolderID *string      `bson:"drive_folder_id,omitempty" json:"driveFolderId,omitempty"`
	Status        RecordStatus `gorm:"size:16;not null;default:active;index" bson:"status" json:"status"`
	CreatedDate   time.Time    `gorm:"autoCreateTime" bson:"created_date" json:"createdDate"`
}

func (Student) TableName() string { return "students" }

func (s Student) MarshalJSON() ([]byte, error) {
	type alias Student
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(s), s.Status.IsActive()})
}

// StudentIdentity is the slice of a student returned to parents.
type StudentIdentity struct {
	Name        string `json:"name"`
	CivilID     string `json:"civilId"`
	Grade       string `json:"grade"`
	ClassNumber int    `json:"classNumber"`
}

func (s *Student) Identity() StudentIdentity {
	return StudentIdentity{
		Name:        s.StudentName,
		CivilID:     s.CivilID,
		Grade:       s.Grade,
		ClassNumber: s.ClassNumber,
	}
}
