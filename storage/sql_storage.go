package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studentfiles/models"
)

type SQLStorage struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewPostgresStorage opens a pgx pool and hands it to gorm.
func NewPostgresStorage(ctx context.Context, dsn string) (*SQLStorage, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &SQLStorage{db: db, pool: pool}, nil
}

// NewSQLiteStorage is used by tests and local tooling. SQLite only allows a
// single writer, so the pool is pinned to one connection.
func NewSQLiteStorage(dsn string) (*SQLStorage, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLStorage{db: db}, nil
}

func (s *SQLStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Teacher{},
		&models.Student{},
		&models.File{},
		&models.CaptchaQuestion{},
	)
}

func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *SQLStorage) GetTeacher(ctx context.Context, id uint) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := s.db.WithContext(ctx).First(&teacher, id).Error; err != nil {
		return nil, notFound(err, "get teacher")
	}
	return &teacher, nil
}

func (s *SQLStorage) GetTeacherByGoogleID(ctx context.Context, googleID string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := s.db.WithContext(ctx).Where("google_id = ?", googleID).First(&teacher).Error; err != nil {
		return nil, notFound(err, "get teacher by google id")
	}
	return &teacher, nil
}

func (s *SQLStorage) GetTeacherByLinkCode(ctx context.Context, linkCode string) (*models.Teacher, error) {
	var teacher models.Teacher
	err := s.db.WithContext(ctx).
		Where("link_code = ? AND status = ?", linkCode, models.StatusActive).
		First(&teacher).Error
	if err != nil {
		return nil, notFound(err, "get teacher by link code")
	}
	return &teacher, nil
}

func (s *SQLStorage) GetTeacherByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	var teacher models.Teacher
	err := s.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, models.StatusActive).
		Order("CASE WHEN password_hash <> '' THEN 0 ELSE 1 END").
		Order("created_at DESC").
		Order("id DESC").
		First(&teacher).Error
	if err != nil {
		return nil, notFound(err, "get teacher by email")
	}
	return &teacher, nil
}

func (s *SQLStorage) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	if teacher.Status == "" {
		teacher.Status = models.StatusActive
	}
	if err := s.db.WithContext(ctx).Create(teacher).Error; err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

func (s *SQLStorage) UpdateTeacher(ctx context.Context, teacher *models.Teacher) error {
	if err := s.db.WithContext(ctx).Save(teacher).Error; err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

func (s *SQLStorage) updateTeacherColumns(ctx context.Context, id uint, what string, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Teacher{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (s *SQLStorage) UpdateTeacherTokens(ctx context.Context, id uint, accessToken, refreshToken string, expiry *time.Time) error {
	values := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
	}
	if refreshToken != "" {
		values["refresh_token"] = refreshToken
	}
	return s.updateTeacherColumns(ctx, id, "update teacher tokens", values)
}

func (s *SQLStorage) SetTeacherPassword(ctx context.Context, id uint, passwordHash string) error {
	return s.updateTeacherColumns(ctx, id, "set teacher password", map[string]interface{}{"password_hash": passwordHash})
}

func (s *SQLStorage) SetTeacherDriveFolder(ctx context.Context, id uint, folderID string) error {
	return s.updateTeacherColumns(ctx, id, "set teacher drive folder", map[string]interface{}{"drive_folder_id": folderID})
}

func (s *SQLStorage) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.updateTeacherColumns(ctx, id, "touch last login", map[string]interface{}{"last_login": at})
}

func (s *SQLStorage) activeStudents(ctx context.Context, teacherID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Student{}).
		Where("teacher_id = ? AND status = ?", teacherID, models.StatusActive)
}

func (s *SQLStorage) activeFiles(ctx context.Context, teacherID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.File{}).
		Where("teacher_id = ? AND status = ?", teacherID, models.StatusActive)
}

func (s *SQLStorage) GetStudent(ctx context.Context, teacherID, id uint) (*models.Student, error) {
	var student models.Student
	if err := s.activeStudents(ctx, teacherID).Where("id = ?", id).First(&student).Error; err != nil {
		return nil, notFound(err, "get student")
	}
	return &student, nil
}

func (s *SQLStorage) GetStudentByCivilID(ctx context.Context, teacherID uint, civilID string) (*models.Student, error) {
	var student models.Student
	if err := s.activeStudents(ctx, teacherID).Where("civil_id = ?", civilID).First(&student).Error; err != nil {
		return nil, notFound(err, "get student by civil id")
	}
	return &student, nil
}

func (s *SQLStorage) GetStudentsByTeacher(ctx context.Context, teacherID uint) ([]models.Student, error) {
	var students []models.Student
	if err := s.activeStudents(ctx, teacherID).Order("student_name").Order("id").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

func (s *SQLStorage) GetCivilIDsByTeacher(ctx context.Context, teacherID uint) ([]string, error) {
	var ids []string
	if err := s.activeStudents(ctx, teacherID).Distinct().Order("civil_id").Pluck("civil_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list civil ids: %w", err)
	}
	return ids, nil
}

func (s *SQLStorage) CreateStudent(ctx context.Context, student *models.Student) error {
	if student.Status == "" {
		student.Status = models.StatusActive
	}
	if err := s.db.WithContext(ctx).Create(student).Error; err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

func (s *SQLStorage) CreateStudentsBatch(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	for i := range students {
		if students[i].Status == "" {
			students[i].Status = models.StatusActive
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(students, 200).Error; err != nil {
		return fmt.Errorf("create students batch: %w", err)
	}
	return nil
}

func (s *SQLStorage) MarkFolderCreated(ctx context.Context, studentID uint, driveFolderID *string) error {
	res := s.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", studentID).
		Updates(map[string]interface{}{"folder_created": true, "drive_folder_id": driveFolderID})
	if res.Error != nil {
		return fmt.Errorf("mark folder created: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark folder created: %w", ErrNotFound)
	}
	return nil
}

func (s *SQLStorage) DeleteStudent(ctx context.Context, teacherID, id uint) error {
	res := s.activeStudents(ctx, teacherID).Where("id = ?", id).Update("status", models.StatusDeleted)
	if res.Error != nil {
		return fmt.Errorf("delete student: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete student: %w", ErrNotFound)
	}
	return nil
}

func (s *SQLStorage) GetFile(ctx context.Context, teacherID, id uint) (*models.File, error) {
	var file models.File
	if err := s.activeFiles(ctx, teacherID).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, notFound(err, "get file")
	}
	return &file, nil
}

func (s *SQLStorage) GetFilesByStudent(ctx context.Context, teacherID uint, civilID string) ([]models.File, error) {
	var files []models.File
	err := s.activeFiles(ctx, teacherID).Where("student_civil_id = ?", civilID).
		Order("upload_date DESC").Order("id DESC").Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list student files: %w", err)
	}
	return files, nil
}

func (s *SQLStorage) CreateFile(ctx context.Context, file *models.File) error {
	if file.Status == "" {
		file.Status = models.StatusActive
	}
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (s *SQLStorage) DeleteFile(ctx context.Context, teacherID, id uint, at time.Time) error {
	res := s.activeFiles(ctx, teacherID).Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.StatusDeleted, "deleted_at": at.UTC()})
	if res.Error != nil {
		return fmt.Errorf("delete file: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete file: %w", ErrNotFound)
	}
	return nil
}

func (s *SQLStorage) ListDeletedFilesBefore(ctx context.Context, cutoff time.Time) ([]models.File, error) {
	var files []models.File
	err := s.db.WithContext(ctx).
		Where("status = ? AND deleted_at IS NOT NULL AND deleted_at <= ?", models.StatusDeleted, cutoff.UTC()).
		Order("id").Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list deleted files: %w", err)
	}
	return files, nil
}

func (s *SQLStorage) MarkFilePurged(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND status = ?", id, models.StatusDeleted).
		Update("status", models.StatusPurged)
	if res.Error != nil {
		return fmt.Errorf("mark file purged: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark file purged: %w", ErrNotFound)
	}
	return nil
}

func (s *SQLStorage) GetRandomCaptcha(ctx context.Context) (*models.CaptchaQuestion, error) {
	var q models.CaptchaQuestion
	err := s.db.WithContext(ctx).Where("status = ?", models.StatusActive).Order("RANDOM()").First(&q).Error
	if err != nil {
		return nil, notFound(err, "get random captcha")
	}
	return &q, nil
}

func (s *SQLStorage) GetCaptcha(ctx context.Context, id uint) (*models.CaptchaQuestion, error) {
	var q models.CaptchaQuestion
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, notFound(err, "get captcha")
	}
	return &q, nil
}

func (s *SQLStorage) CreateCaptcha(ctx context.Context, question *models.CaptchaQuestion) error {
	if question.Status == "" {
		question.Status = models.StatusActive
	}
	if err := s.db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("create captcha: %w", err)
	}
	return nil
}

func (s *SQLStorage) CountCaptchas(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.CaptchaQuestion{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count captchas: %w", err)
	}
	return n, nil
}

func (s *SQLStorage) GetTeacherStats(ctx context.Context, teacherID uint) (*models.TeacherStats, error) {
	stats := &models.TeacherStats{Subjects: []string{}}

	if err := s.activeStudents(ctx, teacherID).Count(&stats.TotalStudents).Error; err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	if err := s.activeFiles(ctx, teacherID).Count(&stats.TotalFiles).Error; err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	if err := s.activeStudents(ctx, teacherID).Where("folder_created = ?", true).Count(&stats.FoldersCreated).Error; err != nil {
		return nil, fmt.Errorf("count folders: %w", err)
	}
	if err := s.activeStudents(ctx, teacherID).Distinct().Order("subject").Pluck("subject", &stats.Subjects).Error; err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	// Parents are not tracked individually; every active student counts.
	stats.ActiveParents = stats.TotalStudents
	return stats, nil
}

func (s *SQLStorage) GetStudentFileCounts(ctx context.Context, teacherID uint) ([]models.StudentFileCount, error) {
	var counts []models.StudentFileCount
	err := s.db.WithContext(ctx).Raw(`
		SELECT s.id AS student_id, s.civil_id AS civil_id, COUNT(f.id) AS file_count
		FROM students s
		LEFT JOIN files f
			ON f.student_civil_id = s.civil_id AND f.teacher_id = s.teacher_id AND f.status = ?
		WHERE s.teacher_id = ? AND s.status = ?
		GROUP BY s.id, s.civil_id
		ORDER BY s.id`, models.StatusActive, teacherID, models.StatusActive).
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count student files: %w", err)
	}
	return counts, nil
}
