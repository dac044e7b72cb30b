package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"studentfiles/models"
)

type fakeFolder struct {
	name   string
	parent string
}

// fakeDrive keeps folders and uploads in memory.
type fakeDrive struct {
	mu      sync.Mutex
	nextID  int
	folders map[string]fakeFolder
	shared  map[string]bool
	uploads map[string][]byte

	failCreate error
	failUpload error
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		folders: make(map[string]fakeFolder),
		shared:  make(map[string]bool),
		uploads: make(map[string][]byte),
	}
}

func (d *fakeDrive) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, f := range d.folders {
		if f.name == name && f.parent == parentID {
			return id, nil
		}
	}
	return "", nil
}

func (d *fakeDrive) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if d.failCreate != nil {
		return "", d.failCreate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := fmt.Sprintf("folder-%d", d.nextID)
	d.folders[id] = fakeFolder{name: name, parent: parentID}
	return id, nil
}

func (d *fakeDrive) ShareWithAnyone(ctx context.Context, fileID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shared[fileID] = true
	return nil
}

func (d *fakeDrive) UploadFile(ctx context.Context, name, parentID, mimeType string, content io.Reader) (string, error) {
	if d.failUpload != nil {
		return "", d.failUpload
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := fmt.Sprintf("file-%d", d.nextID)
	d.uploads[parentID+"/"+name] = data
	return id, nil
}

func (d *fakeDrive) children(parentID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for _, f := range d.folders {
		if f.parent == parentID {
			names = append(names, f.name)
		}
	}
	return names
}

func (d *fakeDrive) folderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.folders)
}

// namedStrategy returns a fixed client or error under a chosen name.
type namedStrategy struct {
	name   string
	client DriveClient
	err    error
}

func (s namedStrategy) Name() string { return s.name }

func (s namedStrategy) Client(ctx context.Context, teacher *models.Teacher) (DriveClient, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.client == nil {
		return nil, ErrDriveUnavailable
	}
	return s.client, nil
}

var errQuota = errors.New("quota exceeded")
