package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

const folderMimeType = "application/vnd.google-apps.folder"

// ErrDriveUnavailable means a credential strategy has nothing to offer for
// this teacher; the chain moves on without counting it as a failure.
var ErrDriveUnavailable = errors.New("drive credentials unavailable")

// DriveClient is the subset of the Drive API the service needs.
type DriveClient interface {
	// FindFolder returns "" when no folder with that name exists under parentID.
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	ShareWithAnyone(ctx context.Context, fileID string) error
	UploadFile(ctx context.Context, name, parentID, mimeType string, content io.Reader) (string, error)
}

type googleDriveClient struct {
	srv *drive.Service
}

func NewGoogleDriveClient(ctx context.Context, httpClient *http.Client) (DriveClient, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}
	return &googleDriveClient{srv: srv}, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func (c *googleDriveClient) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(parentID), escapeQuery(name), folderMimeType)
	list, err := c.srv.Files.List().Q(q).Fields("files(id, name)").PageSize(1).
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("find folder %s: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (c *googleDriveClient) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	folder, err := c.srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", name, err)
	}
	return folder.Id, nil
}

func (c *googleDriveClient) ShareWithAnyone(ctx context.Context, fileID string) error {
	_, err := c.srv.Permissions.Create(fileID, &drive.Permission{Type: "anyone", Role: "writer"}).
		SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("share %s: %w", fileID, err)
	}
	return nil
}

func (c *googleDriveClient) UploadFile(ctx context.Context, name, parentID, mimeType string, content io.Reader) (string, error) {
	file, err := c.srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).Media(content).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not create file: %w", err)
	}
	return file.Id, nil
}

// DriveStrategy yields a Drive client for a teacher, or ErrDriveUnavailable.
type DriveStrategy interface {
	Name() string
	Client(ctx context.Context, teacher *models.Teacher) (DriveClient, error)
}

type ServiceAccountStrategy struct {
	client DriveClient
}

// LoadServiceAccountKey reads the key from the inline JSON or, failing that,
// from the key file. An empty result means no service account.
func LoadServiceAccountKey(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// NewServiceAccountStrategy builds a client from a service account key.
// Keys pasted into env vars often carry literal "\n" in the private key.
func NewServiceAccountStrategy(ctx context.Context, keyJSON []byte) (*ServiceAccountStrategy, error) {
	var credentials map[string]interface{}
	if err := json.Unmarshal(keyJSON, &credentials); err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if pk, ok := credentials["private_key"].(string); ok {
		credentials["private_key"] = strings.ReplaceAll(pk, "\\n", "\n")
	}
	rectified, err := json.Marshal(credentials)
	if err != nil {
		return nil, fmt.Errorf("encode service account key: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(rectified, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("service account config: %w", err)
	}
	client, err := NewGoogleDriveClient(ctx, jwtConfig.Client(context.Background()))
	if err != nil {
		return nil, err
	}
	utils.LogInfo(fmt.Sprintf("[DriveService] Service account ready: %s", jwtConfig.Email))
	return &ServiceAccountStrategy{client: client}, nil
}

// NewStaticDriveStrategy wraps an existing client, mostly for tests and tools.
func NewStaticDriveStrategy(client DriveClient) *ServiceAccountStrategy {
	return &ServiceAccountStrategy{client: client}
}

func (s *ServiceAccountStrategy) Name() string { return "service-account" }

func (s *ServiceAccountStrategy) Client(ctx context.Context, teacher *models.Teacher) (DriveClient, error) {
	if s == nil || s.client == nil {
		return nil, ErrDriveUnavailable
	}
	return s.client, nil
}

// OAuthStrategy acts with the teacher's own Google tokens. Tokens refreshed
// along the way are written back to the teacher row.
type OAuthStrategy struct {
	config *oauth2.Config
	store  storage.Storage
}

func NewOAuthStrategy(config *oauth2.Config, store storage.Storage) *OAuthStrategy {
	return &OAuthStrategy{config: config, store: store}
}

func (s *OAuthStrategy) Name() string { return "oauth" }

func (s *OAuthStrategy) Client(ctx context.Context, teacher *models.Teacher) (DriveClient, error) {
	source, err := s.tokenSource(teacher)
	if err != nil {
		return nil, err
	}
	return NewGoogleDriveClient(ctx, oauth2.NewClient(context.Background(), source))
}

// tokenSource refreshes through the OAuth client when one is configured and
// otherwise serves the stored access token as is.
func (s *OAuthStrategy) tokenSource(teacher *models.Teacher) (oauth2.TokenSource, error) {
	if !teacher.HasGoogleTokens() {
		return nil, ErrDriveUnavailable
	}
	token := &oauth2.Token{
		AccessToken:  teacher.AccessToken,
		RefreshToken: teacher.RefreshToken,
		TokenType:    "Bearer",
	}
	if teacher.TokenExpiry != nil {
		token.Expiry = *teacher.TokenExpiry
	}

	switch {
	case s.config != nil && s.config.ClientID != "" && token.RefreshToken != "":
		return oauth2.ReuseTokenSource(token, &persistingTokenSource{
			base:      s.config.TokenSource(context.Background(), token),
			store:     s.store,
			teacherID: teacher.ID,
			last:      token.AccessToken,
		}), nil
	case token.AccessToken != "":
		return oauth2.StaticTokenSource(token), nil
	default:
		return nil, ErrDriveUnavailable
	}
}

type persistingTokenSource struct {
	base      oauth2.TokenSource
	store     storage.Storage
	teacherID uint

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last && p.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		expiry := token.Expiry
		if err := p.store.UpdateTeacherTokens(ctx, p.teacherID, token.AccessToken, token.RefreshToken, &expiry); err != nil {
			utils.LogWarning(fmt.Sprintf("[DriveService] Could not persist refreshed token for teacher %d: %v", p.teacherID, err))
		} else {
			utils.LogInfo(fmt.Sprintf("[DriveService] Persisted refreshed token for teacher %d", p.teacherID))
		}
		p.last = token.AccessToken
	}
	return token, nil
}

type ChainResult int

const (
	ChainCreated ChainResult = iota
	ChainFailed
	ChainUnavailable
)

func (r ChainResult) String() string {
	switch r {
	case ChainCreated:
		return "created"
	case ChainFailed:
		return "failed"
	default:
		return "unavailable"
	}
}

type ChainOutcome struct {
	Result   ChainResult
	Strategy string
	Err      error
}

// DriveChain tries strategies in order. A strategy that is unavailable or
// fails hands over to the next one; the chain reports unavailable only when
// no strategy had credentials at all.
type DriveChain struct {
	strategies []DriveStrategy
}

func NewDriveChain(strategies ...DriveStrategy) *DriveChain {
	return &DriveChain{strategies: strategies}
}

func (c *DriveChain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

func (c *DriveChain) Run(ctx context.Context, teacher *models.Teacher, fn func(DriveClient) error) ChainOutcome {
	var failures []string
	var lastErr error

	for _, strategy := range c.strategies {
		client, err := strategy.Client(ctx, teacher)
		if errors.Is(err, ErrDriveUnavailable) {
			continue
		}
		if err == nil {
			err = fn(client)
		}
		if err != nil {
			lastErr = err
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.Name(), err))
			continue
		}
		return ChainOutcome{Result: ChainCreated, Strategy: strategy.Name()}
	}

	if lastErr != nil {
		return ChainOutcome{Result: ChainFailed, Err: errors.New(strings.Join(failures, "; "))}
	}
	return ChainOutcome{Result: ChainUnavailable, Err: ErrDriveUnavailable}
}

func ensureFolder(ctx context.Context, client DriveClient, name, parentID string) (string, bool, error) {
	folderID, err := client.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", false, err
	}
	if folderID != "" {
		return folderID, false, nil
	}
	folderID, err = client.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", false, err
	}
	return folderID, true, nil
}

// EnsureStudentFolder locates the student's folder under the teacher root,
// creating and sharing it when missing.
func EnsureStudentFolder(ctx context.Context, client DriveClient, rootID, civilID string) (string, bool, error) {
	folderID, created, err := ensureFolder(ctx, client, civilID, rootID)
	if err != nil || !created {
		return folderID, created, err
	}
	if err := client.ShareWithAnyone(ctx, folderID); err != nil {
		utils.LogWarning(fmt.Sprintf("[DriveService] Folder %s created but sharing failed: %v", folderID, err))
	}
	return folderID, true, nil
}
