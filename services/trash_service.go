package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

// TrashService reclaims the bytes of tombstoned files once they are older
// than the retention window.
type TrashService struct {
	store     storage.Storage
	backup    BackupStore
	uploadDir string
	retention time.Duration
}

func NewTrashService(store storage.Storage, backup BackupStore, uploadDir string, retention time.Duration) *TrashService {
	return &TrashService{
		store:     store,
		backup:    backup,
		uploadDir: uploadDir,
		retention: retention,
	}
}

func (s *TrashService) PurgeExpired(ctx context.Context, now time.Time) (*models.PurgeReport, error) {
	report := &models.PurgeReport{Cutoff: now.Add(-s.retention)}

	files, err := s.store.ListDeletedFilesBefore(ctx, report.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired files: %w", err)
	}
	report.Scanned = len(files)

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		if err := s.purgeOne(ctx, &file); err != nil {
			report.Failed++
			utils.LogWarning(fmt.Sprintf("[TrashService] Could not purge file %d: %v", file.ID, err))
			continue
		}
		report.Purged++
		utils.FilesPurged.Inc()
	}
	return report, nil
}

func (s *TrashService) purgeOne(ctx context.Context, file *models.File) error {
	fullPath, err := utils.SafeJoin(s.uploadDir, file.FilePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if file.BackupObject != "" && s.backup != nil {
		if err := s.backup.Delete(ctx, file.BackupObject); err != nil {
			// Local bytes are gone already; the bucket lifecycle can catch up.
			utils.LogWarning(fmt.Sprintf("[TrashService] Backup object %s not deleted: %v", file.BackupObject, err))
		}
	}
	return s.store.MarkFilePurged(ctx, file.ID)
}
