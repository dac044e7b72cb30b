package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidDriveFolder = errors.New("invalid drive folder link")
	ErrDuplicateStudent   = errors.New("student with this civil ID already exists")
	ErrInvalidStudent     = errors.New("invalid student data")
)

type SimpleRegisterRequest struct {
	Name            string `json:"name" binding:"required"`
	SchoolName      string `json:"schoolName"`
	Email           string `json:"email" binding:"required"`
	DriveFolderLink string `json:"driveFolderLink"`
}

type CreateStudentRequest struct {
	CivilID     string `json:"civilId" binding:"required"`
	StudentName string `json:"studentName" binding:"required"`
	Grade       string `json:"grade" binding:"required"`
	ClassNumber int    `json:"classNumber" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
}

type TeacherStatsResponse struct {
	*models.TeacherStats
	StudentFileCounts []models.StudentFileCount `json:"studentFileCounts"`
}

type TeacherService struct {
	store storage.Storage
}

func NewTeacherService(store storage.Storage) *TeacherService {
	return &TeacherService{store: store}
}

// NewLinkCode returns a fresh public slug for the parent portal.
func NewLinkCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *TeacherService) GetTeacher(ctx context.Context, id uint) (*models.Teacher, error) {
	teacher, err := s.store.GetTeacher(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTeacherNotFound
	}
	return teacher, err
}

func (s *TeacherService) SimpleRegister(ctx context.Context, req *SimpleRegisterRequest) (*models.Teacher, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrMissingFields)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFields, err)
	}

	teacher := &models.Teacher{
		Name:       name,
		SchoolName: strings.TrimSpace(req.SchoolName),
		Email:      email,
		LinkCode:   NewLinkCode(),
		Status:     models.StatusActive,
	}
	if link := strings.TrimSpace(req.DriveFolderLink); link != "" {
		folderID, err := utils.ExtractDriveFolderID(link)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDriveFolder, err)
		}
		teacher.DriveFolderID = &folderID
	}

	if err := s.store.CreateTeacher(ctx, teacher); err != nil {
		return nil, err
	}
	utils.LogInfo(fmt.Sprintf("[TeacherService] Registered teacher %d (%s)", teacher.ID, teacher.Email))
	return teacher, nil
}

// Login accepts email only for teachers that never set a password.
func (s *TeacherService) Login(ctx context.Context, email, password string) (*models.Teacher, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrMissingFields)
	}
	teacher, err := s.store.GetTeacherByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTeacherNotFound
	}
	if err != nil {
		return nil, err
	}

	if teacher.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(teacher.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	now := time.Now()
	if err := s.store.TouchLastLogin(ctx, teacher.ID, now); err != nil {
		utils.LogWarning(fmt.Sprintf("[TeacherService] Could not update last login for %d: %v", teacher.ID, err))
	}
	teacher.LastLogin = &now
	return teacher, nil
}

func (s *TeacherService) SetPassword(ctx context.Context, id uint, password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.store.SetTeacherPassword(ctx, id, string(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTeacherNotFound
	}
	return err
}

// SetDriveFolder accepts a share link or a bare folder ID.
func (s *TeacherService) SetDriveFolder(ctx context.Context, id uint, input string) (string, error) {
	folderID, err := utils.ExtractDriveFolderID(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDriveFolder, err)
	}
	err = s.store.SetTeacherDriveFolder(ctx, id, folderID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrTeacherNotFound
	}
	if err != nil {
		return "", err
	}
	return folderID, nil
}

func (s *TeacherService) Stats(ctx context.Context, id uint) (*TeacherStatsResponse, error) {
	if _, err := s.GetTeacher(ctx, id); err != nil {
		return nil, err
	}
	stats, err := s.store.GetTeacherStats(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.GetStudentFileCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TeacherStatsResponse{TeacherStats: stats, StudentFileCounts: counts}, nil
}

func (s *TeacherService) ListStudents(ctx context.Context, teacherID uint) ([]models.Student, error) {
	return s.store.GetStudentsByTeacher(ctx, teacherID)
}

func (s *TeacherService) CreateStudent(ctx context.Context, teacherID uint, req *CreateStudentRequest) (*models.Student, error) {
	if _, err := s.GetTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	civilID, err := utils.ValidateCivilID(req.CivilID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStudent, err)
	}
	name, grade, subject := strings.TrimSpace(req.StudentName), strings.TrimSpace(req.Grade), strings.TrimSpace(req.Subject)
	if name == "" || grade == "" || subject == "" || req.ClassNumber <= 0 {
		return nil, fmt.Errorf("%w: name, grade, class number and subject are required", ErrInvalidStudent)
	}

	_, err = s.store.GetStudentByCivilID(ctx, teacherID, civilID)
	if err == nil {
		return nil, ErrDuplicateStudent
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	student := &models.Student{
		CivilID:     civilID,
		StudentName: name,
		Grade:       grade,
		ClassNumber: req.ClassNumber,
		Subject:     subject,
		TeacherID:   teacherID,
		Status:      models.StatusActive,
	}
	if err := s.store.CreateStudent(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *TeacherService) DeleteStudent(ctx context.Context, teacherID, studentID uint) error {
	err := s.store.DeleteStudent(ctx, teacherID, studentID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrStudentNotFound
	}
	return err
}
