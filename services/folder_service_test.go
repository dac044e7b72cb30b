package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/storage/storagetest"
)

func seedTeacherWithStudents(t *testing.T, store *storage.SQLStorage, n int) *models.Teacher {
	t.Helper()
	root := "root-folder"
	teacher := storagetest.Teacher(t, store, func(tc *models.Teacher) {
		tc.DriveFolderID = &root
	})
	for i := 0; i < n; i++ {
		storagetest.Student(t, store, teacher.ID, fmt.Sprintf("10000000%02d", i), fmt.Sprintf("طالب %d", i))
	}
	return teacher
}

func TestCreateStudentFoldersCreatesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 7)
	drive := newFakeDrive()

	svc := NewFolderService(store, NewDriveChain(NewStaticDriveStrategy(drive)), 3, 0)

	result, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{WithSubjectFolders: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 7, result.Created)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.Details, 7)
	assert.Len(t, drive.children("root-folder"), 7)

	students, err := store.GetStudentsByTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	for _, st := range students {
		assert.True(t, st.FolderCreated)
		require.NotNil(t, st.DriveFolderID)
		assert.True(t, drive.shared[*st.DriveFolderID])
		assert.Equal(t, []string{"رياضيات"}, drive.children(*st.DriveFolderID))
	}

	again, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{WithSubjectFolders: true})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 7, again.Skipped)
	assert.Equal(t, again.Total, again.Created+again.Failed+again.Skipped)
}

func TestCreateStudentFoldersWithCategories(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 1)
	drive := newFakeDrive()

	svc := NewFolderService(store, NewDriveChain(NewStaticDriveStrategy(drive)), 3, 0)
	_, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{WithSubjectFolders: true, WithCategoryFolders: true})
	require.NoError(t, err)

	// root -> student -> subject -> categories
	assert.Equal(t, 1+1+len(models.FileCategories), drive.folderCount())
}

func TestCreateStudentFoldersReusesExistingRemoteFolder(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 1)
	drive := newFakeDrive()
	existing, err := drive.CreateFolder(ctx, "1000000000", "root-folder")
	require.NoError(t, err)

	svc := NewFolderService(store, NewDriveChain(NewStaticDriveStrategy(drive)), 3, 0)
	result, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, drive.folderCount())
	assert.False(t, drive.shared[existing], "existing folders keep their sharing settings")
}

func TestCreateStudentFoldersLogicalFallback(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 2)

	chain := NewDriveChain(namedStrategy{name: "service-account"}, namedStrategy{name: "oauth"})
	svc := NewFolderService(store, chain, 3, 0)

	result, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Contains(t, result.Details[0], "بدون Google Drive")

	students, err := store.GetStudentsByTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	for _, st := range students {
		assert.True(t, st.FolderCreated)
		assert.Nil(t, st.DriveFolderID)
	}
}

func TestCreateStudentFoldersFailedStrategyFallsThrough(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 2)

	broken := newFakeDrive()
	broken.failCreate = errQuota
	working := newFakeDrive()

	chain := NewDriveChain(
		namedStrategy{name: "service-account", client: broken},
		namedStrategy{name: "oauth", client: working},
	)
	svc := NewFolderService(store, chain, 3, 0)

	result, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, broken.folderCount())
	assert.Equal(t, 2, working.folderCount())
}

func TestCreateStudentFoldersAllCredentialedFail(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 4)

	broken := newFakeDrive()
	broken.failCreate = errQuota
	chain := NewDriveChain(namedStrategy{name: "service-account", client: broken}, namedStrategy{name: "oauth"})
	svc := NewFolderService(store, chain, 3, 0)

	result, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 4, result.Failed)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, result.Total, result.Created+result.Failed+result.Skipped)

	students, err := store.GetStudentsByTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	for _, st := range students {
		assert.False(t, st.FolderCreated, "failed students are not marked and no logical fallback applies")
	}
}

func TestCreateStudentFoldersRequiresTeacherFolder(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	teacher := storagetest.Teacher(t, store)
	svc := NewFolderService(store, NewDriveChain(), 3, 0)

	_, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{})
	assert.ErrorIs(t, err, ErrDriveFolderNotConfigured)

	_, err = svc.CreateStudentFolders(ctx, 9999, models.FolderOptions{})
	assert.ErrorIs(t, err, ErrTeacherNotFound)
}

type cancelOnCreate struct {
	*fakeDrive
	cancel context.CancelFunc
}

func (d cancelOnCreate) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	d.cancel()
	return d.fakeDrive.CreateFolder(ctx, name, parentID)
}

func TestCreateStudentFoldersCancelledCountsRemainingAsFailed(t *testing.T) {
	store := storagetest.New(t)
	teacher := seedTeacherWithStudents(t, store, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drive := cancelOnCreate{fakeDrive: newFakeDrive(), cancel: cancel}
	svc := NewFolderService(store, NewDriveChain(NewStaticDriveStrategy(drive)), 1, time.Hour)
	result, err := svc.CreateStudentFolders(ctx, teacher.ID, models.FolderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, drive.folderCount(), "no batch starts after cancellation")
	assert.GreaterOrEqual(t, result.Failed, 2)
	assert.Equal(t, result.Total, result.Created+result.Failed+result.Skipped)
}
