package services

import (
	"context"
	"errors"
	"strings"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidLinkCode = errors.New("invalid access link")
)

type VerifyStudentRequest struct {
	LinkCode      string `json:"linkCode"`
	CivilID       string `json:"civilId"`
	CaptchaID     uint   `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

type VerifyStudentResult struct {
	Student models.StudentIdentity `json:"student"`
	Teacher models.PublicTeacher   `json:"teacher"`
	Files   models.GroupedFiles    `json:"files"`
}

// ParentService backs the parent portal. It issues no session: every lookup
// re-runs the full verification.
type ParentService struct {
	store    storage.Storage
	captchas *CaptchaService
}

func NewParentService(store storage.Storage, captchas *CaptchaService) *ParentService {
	return &ParentService{store: store, captchas: captchas}
}

func (s *ParentService) TeacherByLinkCode(ctx context.Context, linkCode string) (*models.Teacher, error) {
	linkCode = strings.TrimSpace(linkCode)
	if linkCode == "" {
		return nil, ErrInvalidLinkCode
	}
	teacher, err := s.store.GetTeacherByLinkCode(ctx, linkCode)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidLinkCode
	}
	return teacher, err
}

func (s *ParentService) VerifyStudent(ctx context.Context, req *VerifyStudentRequest) (*VerifyStudentResult, error) {
	result, err := s.verify(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInvalidCaptcha):
		outcome = "bad_captcha"
	case errors.Is(err, ErrStudentNotFound), errors.Is(err, ErrInvalidLinkCode):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	utils.ParentVerifications.WithLabelValues(outcome).Inc()
	return result, err
}

func (s *ParentService) verify(ctx context.Context, req *VerifyStudentRequest) (*VerifyStudentResult, error) {
	if strings.TrimSpace(req.LinkCode) == "" || strings.TrimSpace(req.CivilID) == "" ||
		req.CaptchaID == 0 || strings.TrimSpace(req.CaptchaAnswer) == "" {
		return nil, ErrMissingFields
	}

	teacher, err := s.TeacherByLinkCode(ctx, req.LinkCode)
	if err != nil {
		return nil, err
	}
	if err := s.captchas.Check(ctx, req.CaptchaID, req.CaptchaAnswer); err != nil {
		return nil, err
	}

	civilID := utils.NormalizeCivilID(req.CivilID)
	if !utils.IsValidCivilID(civilID) {
		return nil, ErrStudentNotFound
	}
	student, err := s.store.GetStudentByCivilID(ctx, teacher.ID, civilID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}

	files, err := s.store.GetFilesByStudent(ctx, teacher.ID, student.CivilID)
	if err != nil {
		return nil, err
	}

	return &VerifyStudentResult{
		Student: student.Identity(),
		Teacher: teacher.Public(),
		Files:   models.GroupFiles(files),
	}, nil
}
