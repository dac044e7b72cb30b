package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

var (
	ErrInvalidCaptcha = errors.New("invalid captcha answer")
	ErrNoCaptcha      = errors.New("no captcha questions available")
)

var numericAnswer = regexp.MustCompile(`^[0-9]+$`)

type CaptchaService struct {
	store  storage.Storage
	strict bool
}

// NewCaptchaService returns a checker that only requires a numeric answer
// unless strict is set, in which case the stored answer must match too.
func NewCaptchaService(store storage.Storage, strict bool) *CaptchaService {
	return &CaptchaService{store: store, strict: strict}
}

// Seed inserts the default questions when the table is empty.
func (s *CaptchaService) Seed(ctx context.Context) (int, error) {
	count, err := s.store.CountCaptchas(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for _, q := range models.DefaultCaptchaQuestions {
		question := q
		question.Status = models.StatusActive
		if err := s.store.CreateCaptcha(ctx, &question); err != nil {
			return 0, fmt.Errorf("seed captcha %q: %w", q.Question, err)
		}
	}
	utils.LogInfo(fmt.Sprintf("[CaptchaService] Seeded %d captcha questions", len(models.DefaultCaptchaQuestions)))
	return len(models.DefaultCaptchaQuestions), nil
}

func (s *CaptchaService) Random(ctx context.Context) (*models.CaptchaQuestion, error) {
	q, err := s.store.GetRandomCaptcha(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoCaptcha
	}
	return q, err
}

func (s *CaptchaService) Check(ctx context.Context, captchaID uint, answer string) error {
	answer = strings.TrimSpace(answer)
	if !numericAnswer.MatchString(answer) {
		return ErrInvalidCaptcha
	}
	if !s.strict {
		return nil
	}

	q, err := s.store.GetCaptcha(ctx, captchaID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidCaptcha
	}
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(q.Answer), answer) {
		return ErrInvalidCaptcha
	}
	return nil
}
