// Package storage persists teachers, students, files and captcha questions.
// Every student and file query is scoped by the owning teacher ID.
package storage

import (
	"context"
	"errors"
	"time"

	"studentfiles/models"
)

var ErrNotFound = errors.New("record not found")

type Storage interface {
	GetTeacher(ctx context.Context, id uint) (*models.Teacher, error)
	GetTeacherByGoogleID(ctx context.Context, googleID string) (*models.Teacher, error)
	GetTeacherByLinkCode(ctx context.Context, linkCode string) (*models.Teacher, error)
	// GetTeacherByEmail prefers the newest teacher that has a password set.
	GetTeacherByEmail(ctx context.Context, email string) (*models.Teacher, error)
	CreateTeacher(ctx context.Context, teacher *models.Teacher) error
	UpdateTeacher(ctx context.Context, teacher *models.Teacher) error
	UpdateTeacherTokens(ctx context.Context, id uint, accessToken, refreshToken string, expiry *time.Time) error
	SetTeacherPassword(ctx context.Context, id uint, passwordHash string) error
	SetTeacherDriveFolder(ctx context.Context, id uint, folderID string) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error

	GetStudent(ctx context.Context, teacherID, id uint) (*models.Student, error)
	GetStudentByCivilID(ctx context.Context, teacherID uint, civilID string) (*models.Student, error)
	GetStudentsByTeacher(ctx context.Context, teacherID uint) ([]models.Student, error)
	GetCivilIDsByTeacher(ctx context.Context, teacherID uint) ([]string, error)
	CreateStudent(ctx context.Context, student *models.Student) error
	CreateStudentsBatch(ctx context.Context, students []models.Student) error
	MarkFolderCreated(ctx context.Context, studentID uint, driveFolderID *string) error
	DeleteStudent(ctx context.Context, teacherID, id uint) error

	GetFile(ctx context.Context, teacherID, id uint) (*models.File, error)
	GetFilesByStudent(ctx context.Context, teacherID uint, civilID string) ([]models.File, error)
	CreateFile(ctx context.Context, file *models.File) error
	DeleteFile(ctx context.Context, teacherID, id uint, at time.Time) error
	ListDeletedFilesBefore(ctx context.Context, cutoff time.Time) ([]models.File, error)
	MarkFilePurged(ctx context.Context, id uint) error

	GetRandomCaptcha(ctx context.Context) (*models.CaptchaQuestion, error)
	GetCaptcha(ctx context.Context, id uint) (*models.CaptchaQuestion, error)
	CreateCaptcha(ctx context.Context, question *models.CaptchaQuestion) error
	CountCaptchas(ctx context.Context) (int64, error)

	GetTeacherStats(ctx context.Context, teacherID uint) (*models.TeacherStats, error)
	GetStudentFileCounts(ctx context.Context, teacherID uint) ([]models.StudentFileCount, error)

	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Storage = (*SQLStorage)(nil)
	_ Storage = (*MongoStorage)(nil)
)
