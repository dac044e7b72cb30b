package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

var (
	ErrNoFiles          = errors.New("no files provided")
	ErrTooManyFiles     = errors.New("too many files")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidFile      = errors.New("invalid file")
	ErrInvalidCategory  = errors.New("invalid file category")
	ErrInvalidPath      = errors.New("invalid file path")
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidCivilID   = errors.New("invalid civil ID")
	errMirrorNotApplied = errors.New("mirror not applied")
)

type FileService struct {
	store       storage.Storage
	chain       *DriveChain
	backup      BackupStore
	uploadDir   string
	maxFileSize int64
	maxFiles    int
}

// NewFileService wires the local file store. chain and backup are optional
// mirrors and may be nil.
func NewFileService(store storage.Storage, chain *DriveChain, backup BackupStore, uploadDir string, maxFileSize int64, maxFiles int) *FileService {
	return &FileService{
		store:       store,
		chain:       chain,
		backup:      backup,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
	}
}

func (s *FileService) UploadDir() string { return s.uploadDir }

func (s *FileService) MaxFileSize() int64 { return s.maxFileSize }

// MaxRequestBytes bounds a whole upload request body, leaving room for
// multipart framing and the text fields.
func (s *FileService) MaxRequestBytes() int64 {
	return s.maxFileSize*int64(s.maxFiles) + 1<<20
}

type UploadRequest struct {
	TeacherID   uint
	StudentID   uint
	Subject     string
	Category    string
	Description string
	Files       []*multipart.FileHeader
}

type UploadResult struct {
	Message  string        `json:"message"`
	Files    []models.File `json:"files"`
	Warnings []string      `json:"warnings"`
}

// ValidateUpload checks count, sizes, names and category. Nothing is
// written before this passes.
func (s *FileService) ValidateUpload(req *UploadRequest) (models.FileCategory, error) {
	if len(req.Files) == 0 {
		return "", ErrNoFiles
	}
	if len(req.Files) > s.maxFiles {
		return "", fmt.Errorf("%w: %d files, at most %d allowed", ErrTooManyFiles, len(req.Files), s.maxFiles)
	}
	for _, fh := range req.Files {
		if fh.Size > s.maxFileSize {
			return "", fmt.Errorf("%w: %s", ErrFileTooLarge, fh.Filename)
		}
		if err := utils.ValidateFileName(filepath.Base(fh.Filename)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
	}
	category, err := models.ParseFileCategory(req.Category)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}
	return category, nil
}

// SystemName builds "<civilID>_<yyyymmdd>_<uuid8><ext>".
func SystemName(civilID, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s_%s_%s%s", civilID, now.Format("20060102"), uuid.NewString()[:8], ext)
}

func FileURL(teacherID uint, civilID, systemName string) string {
	return "/api/files/" + path.Join(fmt.Sprint(teacherID), civilID, systemName)
}

func (s *FileService) UploadFiles(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	category, err := s.ValidateUpload(req)
	if err != nil {
		return nil, err
	}

	teacher, err := s.store.GetTeacher(ctx, req.TeacherID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTeacherNotFound
	}
	if err != nil {
		return nil, err
	}
	student, err := s.store.GetStudent(ctx, req.TeacherID, req.StudentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = student.Subject
	}
	var description *string
	if d := strings.TrimSpace(req.Description); d != "" {
		description = &d
	}

	result := &UploadResult{Files: []models.File{}, Warnings: []string{}}
	for _, fh := range req.Files {
		file, warnings, err := s.storeOne(ctx, teacher, student, fh, subject, category, description)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			utils.FilesUploaded.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("upload %s: %w", fh.Filename, err)
		}
		utils.FilesUploaded.WithLabelValues("stored").Inc()
		result.Files = append(result.Files, *file)
	}

	result.Message = fmt.Sprintf("تم رفع %d ملف بنجاح", len(result.Files))
	utils.LogInfo(fmt.Sprintf("[FileService] Teacher %d uploaded %d files for %s (%d warnings)",
		teacher.ID, len(result.Files), student.CivilID, len(result.Warnings)))
	return result, nil
}

func (s *FileService) storeOne(ctx context.Context, teacher *models.Teacher, student *models.Student, fh *multipart.FileHeader, subject string, category models.FileCategory, description *string) (*models.File, []string, error) {
	originalName := filepath.Base(fh.Filename)
	systemName := SystemName(student.CivilID, originalName, time.Now())
	relPath := path.Join(fmt.Sprint(teacher.ID), student.CivilID, systemName)

	fullPath, err := utils.SafeJoin(s.uploadDir, relPath)
	if err != nil {
		return nil, nil, err
	}
	written, err := s.writeLocal(fh, fullPath)
	if err != nil {
		return nil, nil, err
	}

	file := &models.File{
		StudentCivilID: student.CivilID,
		Subject:        subject,
		FileCategory:   category,
		OriginalName:   originalName,
		SystemName:     systemName,
		FilePath:       relPath,
		FileURL:        FileURL(teacher.ID, student.CivilID, systemName),
		FileSize:       written,
		FileType:       strings.TrimPrefix(strings.ToLower(filepath.Ext(originalName)), "."),
		TeacherID:      teacher.ID,
		Description:    description,
		Status:         models.StatusActive,
	}

	var warnings []string
	contentType := ContentType(originalName)

	driveID, err := s.mirrorToDrive(ctx, teacher, student, fullPath, originalName, contentType)
	switch {
	case err == nil:
		file.DriveFileID = driveID
	case !errors.Is(err, errMirrorNotApplied):
		utils.MirrorFailures.WithLabelValues("drive").Inc()
		utils.LogWarning(fmt.Sprintf("[FileService] Drive mirror failed for %s: %v", systemName, err))
		warnings = append(warnings, fmt.Sprintf("%s: تعذر الرفع إلى Google Drive", originalName))
	}

	object, err := s.mirrorToBackup(ctx, teacher.ID, student.CivilID, systemName, fullPath, contentType)
	switch {
	case err == nil:
		file.BackupObject = object
	case !errors.Is(err, errMirrorNotApplied):
		utils.MirrorFailures.WithLabelValues("b2").Inc()
		utils.LogWarning(fmt.Sprintf("[FileService] Backup failed for %s: %v", systemName, err))
		warnings = append(warnings, fmt.Sprintf("%s: تعذر حفظ النسخة الاحتياطية", originalName))
	}

	if err := s.store.CreateFile(ctx, file); err != nil {
		if rmErr := os.Remove(fullPath); rmErr != nil {
			utils.LogWarning(fmt.Sprintf("[FileService] Could not remove orphan %s: %v", fullPath, rmErr))
		}
		return nil, warnings, err
	}
	return file, warnings, nil
}

func (s *FileService) writeLocal(fh *multipart.FileHeader, fullPath string) (int64, error) {
	src, err := fh.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	dst, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	// The header size comes from the client, so the copy is capped as well.
	written, err := io.Copy(dst, io.LimitReader(src, s.maxFileSize+1))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxFileSize {
		err = fmt.Errorf("%w: %s", ErrFileTooLarge, fh.Filename)
	}
	if err != nil {
		os.Remove(fullPath)
		return 0, err
	}
	return written, nil
}

func (s *FileService) mirrorToDrive(ctx context.Context, teacher *models.Teacher, student *models.Student, fullPath, name, contentType string) (string, error) {
	if s.chain == nil || !teacher.HasDriveFolder() {
		return "", errMirrorNotApplied
	}

	var driveFileID string
	outcome := s.chain.Run(ctx, teacher, func(client DriveClient) error {
		folderID, _, err := EnsureStudentFolder(ctx, client, *teacher.DriveFolderID, student.CivilID)
		if err != nil {
			return err
		}
		f, err := os.Open(fullPath)
		if err != nil {
			return err
		}
		defer f.Close()
		driveFileID, err = client.UploadFile(ctx, name, folderID, contentType, f)
		return err
	})

	switch outcome.Result {
	case ChainCreated:
		return driveFileID, nil
	case ChainUnavailable:
		return "", errMirrorNotApplied
	default:
		return "", outcome.Err
	}
}

func (s *FileService) mirrorToBackup(ctx context.Context, teacherID uint, civilID, systemName, fullPath, contentType string) (string, error) {
	if s.backup == nil {
		return "", errMirrorNotApplied
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	object := BackupObjectName(teacherID, civilID, systemName)
	if _, err := s.backup.Put(ctx, object, contentType, f); err != nil {
		return "", err
	}
	return object, nil
}

// ListStudentFiles returns the student with their active files, newest first.
func (s *FileService) ListStudentFiles(ctx context.Context, teacherID, studentID uint) (*models.Student, []models.File, error) {
	student, err := s.store.GetStudent(ctx, teacherID, studentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	files, err := s.store.GetFilesByStudent(ctx, teacherID, student.CivilID)
	if err != nil {
		return nil, nil, err
	}
	return student, files, nil
}

func (s *FileService) ListFilesByCivilID(ctx context.Context, teacherID uint, rawCivilID string) ([]models.File, error) {
	civilID, err := utils.ValidateCivilID(rawCivilID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCivilID, err)
	}
	return s.store.GetFilesByStudent(ctx, teacherID, civilID)
}

// DeleteFile tombstones the row. Bytes stay on disk until the purge job runs.
func (s *FileService) DeleteFile(ctx context.Context, teacherID, fileID uint) error {
	err := s.store.DeleteFile(ctx, teacherID, fileID, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		return ErrFileNotFound
	}
	return err
}

// ResolvePath maps a path under /api/files/ onto the upload directory.
func (s *FileService) ResolvePath(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	fullPath, err := utils.SafeJoin(s.uploadDir, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrFileNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", ErrFileNotFound
	}
	return fullPath, nil
}

// ContentType guesses from the extension.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return getMimeType(ext)
}

func getMimeType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".zip":
		return "application/zip"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
