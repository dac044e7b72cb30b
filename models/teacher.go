package models

import (
	"time"
)

type Teacher struct {
	ID              uint         `gorm:"primaryKey" bson:"_id" json:"id"`
	GoogleID        *string      `gorm:"uniqueIndex" bson:"google_id,omitempty" json:"googleId,omitempty"`
	Email           string       `gorm:"index" bson:"email" json:"email"`
	Name            string       `gorm:"not null" bson:"name" json:"name"`
	SchoolName      string       `bson:"school_name" json:"schoolName"`
	ProfileImageURL string       `bson:"profile_image_url" json:"profileImageUrl,omitempty"`
	DriveFolderID   *string      `bson:"drive_folder_id,omitempty" json:"driveFolderId"`
	AccessToken     string       `bson:"access_token,omitempty" json:"-"`
	RefreshToken    string       `bson:"refresh_token,omitempty" json:"-"`
	TokenExpiry     *time.Time   `bson:"token_expiry,omitempty" json:"-"`
	PasswordHash    string       `bson:"password_hash,omitempty" json:"-"`
	LinkCode        string       `gorm:"uniqueIndex;not null" bson:"link_code" json:"linkCode"`
	Status          RecordStatus `gorm:"size:16;not null;default:active" bson:"status" json:"status"`
	CreatedAt       time.Time    `bson:"created_at" json:"createdAt"`
	LastLogin       *time.Time   `bson:"last_login,omitempty" json:"lastLogin,omitempty"`
}

func (Teacher) TableName() string { return "teachers" }

func (t *Teacher) HasDriveFolder() bool {
	return t.DriveFolderID != nil && *t.DriveFolderID != ""
}

func (t *Teacher) HasGoogleTokens() bool {
	return t.AccessToken != "" || t.RefreshToken != ""
}

func (t *Teacher) HasPassword() bool {
	return t.PasswordHash != ""
}

// PublicTeacher is what parents see after resolving a link code.
type PublicTeacher struct {
	Name       string `json:"name"`
	SchoolName string `json:"schoolName"`
}

func (t *Teacher) Public() PublicTeacher {
	return PublicTeacher{Name: t.Name, SchoolName: t.SchoolName}
}

type TeacherStats struct {
	TotalStudents  int64    `json:"totalStudents"`
	TotalFiles     int64    `json:"totalFiles"`
	Subjects       []string `json:"subjects"`
	ActiveParents  int64    `json:"activeParents"`
	FoldersCreated int64    `json:"foldersCreated"`
}

type StudentFileCount struct {
	StudentID uint   `json:"studentId"`
	CivilID   string `json:"civilId"`
	FileCount int64  `json:"fileCount"`
}
