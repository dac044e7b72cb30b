package models

import (
	"encoding/json"
	"time"
)

type File struct {
	ID             uint         `gorm:"primaryKey" bson:"_id" json:"id"`
	StudentCivilID string       `gorm:"size:10;not null;index:idx_files_teacher_civil" bson:"student_civil_id" json:"studentCivilId"`
	Subject        string       `gorm:"not null" bson:"subject" json:"subject"`
	FileCategory   FileCategory `gorm:"not null" bson:"file_category" json:"fileCategory"`
	OriginalName   string       `gorm:"not null" bson:"original_name" json:"originalName"`
	SystemName     string       `gorm:"not null" bson:"system_name" json:"systemName"`
	FilePath       string       `gorm:"not null" bson:"file_path" json:"filePath"`
	FileURL        string       `gorm:"not null" bson:"file_url" json:"fileUrl"`
	FileSize       int64        `bson:"file_size" json:"fileSize"`
	FileType       string       `bson:"file_type" json:"fileType"`
	TeacherID      uint         `gorm:"not null;index:idx_files_teacher_civil" bson:"teacher_id" json:"teacherId"`
	Description    *string      `bson:"description,omitempty" json:"description"`
	ViewCount      int          `gorm:"not null;default:0" bson:"view_count" json:"viewCount"`
	DriveFileID    string       `bson:"drive_file_id,omitempty" json:"driveFileId,omitempty"`
	BackupObject   string       `bson:"backup_object,omitempty" json:"-"`
	Status         RecordStatus `gorm:"size:16;not null;default:active;index" bson:"status" json:"status"`
	UploadDate     time.Time    `gorm:"autoCreateTime" bson:"upload_date" json:"uploadDate"`
	DeletedAt      *time.Time   `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
}

func (File) TableName() string { return "files" }

func (f File) MarshalJSON() ([]byte, error) {
	type alias File
	return json.Marshal(struct {
		alias
		IsActive bool `json:"isActive"`
	}{alias(f), f.Status.IsActive()})
}

// GroupedFiles maps subject to category to files.
type GroupedFiles map[string]map[FileCategory][]File

// GroupFiles buckets files by subject and category. Buckets only exist for
// files that were seen, so no list is ever empty.
func GroupFiles(files []File) GroupedFiles {
	grouped := make(GroupedFiles)
	for _, f := range files {
		bySubject, ok := grouped[f.Subject]
		if !ok {
			bySubject = make(map[FileCategory][]File)
			grouped[f.Subject] = bySubject
		}
		bySubject[f.FileCategory] = append(bySubject[f.FileCategory], f)
	}
	return grouped
}
