package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

var (
	ErrTeacherNotFound          = errors.New("teacher not found")
	ErrStudentNotFound          = errors.New("student not found")
	ErrDriveFolderNotConfigured = errors.New("teacher has no drive folder configured")
)

// FolderService provisions one Drive folder per student under the teacher's
// root folder.
type FolderService struct {
	store      storage.Storage
	chain      *DriveChain
	batchSize  int
	batchDelay time.Duration
}

func NewFolderService(store storage.Storage, chain *DriveChain, batchSize int, batchDelay time.Duration) *FolderService {
	if batchSize < 1 {
		batchSize = 1
	}
	return &FolderService{
		store:      store,
		chain:      chain,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

type studentOutcome struct {
	result   ChainResult
	strategy string
	detail   string
}

// CreateStudentFolders processes every active student of the teacher that
// does not have a folder yet. Students are handled in concurrent batches;
// one student's failure never affects the others.
func (s *FolderService) CreateStudentFolders(ctx context.Context, teacherID uint, opts models.FolderOptions) (*models.FolderProvisionResult, error) {
	teacher, err := s.store.GetTeacher(ctx, teacherID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTeacherNotFound
	}
	if err != nil {
		return nil, err
	}
	if !teacher.HasDriveFolder() {
		return nil, ErrDriveFolderNotConfigured
	}

	students, err := s.store.GetStudentsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	result := &models.FolderProvisionResult{Total: len(students), Details: []string{}}
	pending := make([]models.Student, 0, len(students))
	for _, st := range students {
		if st.FolderCreated {
			result.Skipped++
			continue
		}
		pending = append(pending, st)
	}

	utils.LogInfo(fmt.Sprintf("[FolderService] Teacher %d: %d students, %d pending, batch size %d",
		teacherID, len(students), len(pending), s.batchSize))

	for start := 0; start < len(pending); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.batchDelay):
			}
		}
		if ctx.Err() != nil {
			for _, st := range pending[start:] {
				result.Failed++
				result.Details = append(result.Details, fmt.Sprintf("%s: %v", st.StudentName, ctx.Err()))
			}
			break
		}

		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		outcomes := make([]studentOutcome, len(batch))

		var g errgroup.Group
		for i := range batch {
			i := i
			g.Go(func() error {
				outcomes[i] = s.provisionStudent(ctx, teacher, &batch[i], opts)
				return nil
			})
		}
		_ = g.Wait()

		for _, o := range outcomes {
			if o.result == ChainFailed {
				result.Failed++
			} else {
				result.Created++
			}
			result.Details = append(result.Details, o.detail)
			utils.FolderProvisioning.WithLabelValues(o.result.String(), o.strategy).Inc()
		}
	}

	result.Success = result.Failed == 0
	utils.LogInfo(fmt.Sprintf("[FolderService] Teacher %d done: created=%d failed=%d skipped=%d",
		teacherID, result.Created, result.Failed, result.Skipped))
	return result, nil
}

func (s *FolderService) provisionStudent(ctx context.Context, teacher *models.Teacher, student *models.Student, opts models.FolderOptions) studentOutcome {
	var folderID string
	outcome := s.chain.Run(ctx, teacher, func(client DriveClient) error {
		id, err := s.buildStudentFolder(ctx, client, *teacher.DriveFolderID, student, opts)
		folderID = id
		return err
	})

	switch outcome.Result {
	case ChainCreated:
		if err := s.store.MarkFolderCreated(ctx, student.ID, &folderID); err != nil {
			utils.LogError(fmt.Sprintf("[FolderService] Folder %s created but student %d not updated", folderID, student.ID), err)
			return studentOutcome{result: ChainFailed, strategy: outcome.Strategy,
				detail: fmt.Sprintf("%s: تم إنشاء المجلد لكن تعذر حفظ الحالة", student.StudentName)}
		}
		return studentOutcome{result: ChainCreated, strategy: outcome.Strategy,
			detail: fmt.Sprintf("%s: تم إنشاء المجلد %s", student.StudentName, student.CivilID)}

	case ChainUnavailable:
		// No credentials at all: record the folder as created so the student
		// is not retried, without a remote folder behind it.
		if err := s.store.MarkFolderCreated(ctx, student.ID, nil); err != nil {
			utils.LogError(fmt.Sprintf("[FolderService] Could not mark student %d", student.ID), err)
			return studentOutcome{result: ChainFailed, strategy: "logical",
				detail: fmt.Sprintf("%s: تعذر حفظ الحالة", student.StudentName)}
		}
		return studentOutcome{result: ChainUnavailable, strategy: "logical",
			detail: fmt.Sprintf("%s: تم التسجيل بدون Google Drive", student.StudentName)}

	default:
		utils.LogWarning(fmt.Sprintf("[FolderService] Student %s failed: %v", student.CivilID, outcome.Err))
		return studentOutcome{result: ChainFailed, strategy: "none",
			detail: fmt.Sprintf("%s: %v", student.StudentName, outcome.Err)}
	}
}

func (s *FolderService) buildStudentFolder(ctx context.Context, client DriveClient, rootID string, student *models.Student, opts models.FolderOptions) (string, error) {
	folderID, _, err := EnsureStudentFolder(ctx, client, rootID, student.CivilID)
	if err != nil {
		return "", err
	}

	if !opts.WithSubjectFolders || student.Subject == "" {
		return folderID, nil
	}
	subjectID, _, err := ensureFolder(ctx, client, student.Subject, folderID)
	if err != nil {
		return "", err
	}
	if opts.WithCategoryFolders {
		for _, category := range models.FileCategories {
			if _, _, err := ensureFolder(ctx, client, string(category), subjectID); err != nil {
				return "", err
			}
		}
	}
	return folderID, nil
}
