package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/utils"
)

var (
	ErrInvalidState        = errors.New("invalid or expired OAuth state")
	ErrOAuthNotConfigured  = errors.New("google oauth is not configured")
	ErrGoogleTokenRejected = errors.New("google access token rejected")
	ErrGoogleAccountInUse  = errors.New("google account already linked to another teacher")
)

const OAuthStateExpiration = 10 * time.Minute

// OAuthState is what a state token remembers between the redirect to Google
// and the callback. TeacherID is zero for a plain sign-in.
type OAuthState struct {
	TeacherID uint      `json:"teacherId"`
	CreatedAt time.Time `json:"createdAt"`
}

// StateStore holds one-time OAuth state tokens.
type StateStore interface {
	Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error
	// Consume returns the state and forgets it; ErrInvalidState when unknown
	// or expired.
	Consume(ctx context.Context, state string) (*OAuthState, error)
}

type StateManager struct {
	states map[string]StateInfo
	mu     sync.Mutex
}

type StateInfo struct {
	Data      OAuthState
	ExpiresAt time.Time
}

func NewStateManager() *StateManager {
	return &StateManager{states: make(map[string]StateInfo)}
}

// StartCleanup drops expired states every interval until ctx is done.
func (sm *StateManager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.cleanup()
			}
		}
	}()
}

func (sm *StateManager) Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.states[state] = StateInfo{Data: data, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

func (sm *StateManager) Consume(ctx context.Context, state string) (*OAuthState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	info, ok := sm.states[state]
	if !ok {
		return nil, ErrInvalidState
	}
	delete(sm.states, state)
	if time.Now().After(info.ExpiresAt) {
		return nil, ErrInvalidState
	}
	data := info.Data
	return &data, nil
}

func (sm *StateManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	expired := 0
	for state, info := range sm.states {
		if now.After(info.ExpiresAt) {
			delete(sm.states, state)
			expired++
		}
	}
	if expired > 0 {
		utils.LogInfo(fmt.Sprintf("[StateManager] Cleaned up %d expired states", expired))
	}
}

// RedisStateStore shares OAuth state between instances.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: "oauth_state:"}
}

func (r *RedisStateStore) Save(ctx context.Context, state string, data OAuthState, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+state, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

func (r *RedisStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	payload, err := r.client.GetDel(ctx, r.prefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("read oauth state: %w", err)
	}
	var data OAuthState
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, ErrInvalidState
	}
	return &data, nil
}

// NewGoogleOAuthConfig asks for offline access to the profile and Drive.
func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			oauth2api.OpenIDScope,
			oauth2api.UserinfoEmailScope,
			oauth2api.UserinfoProfileScope,
			drive.DriveScope,
		},
	}
}

type GoogleProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// GoogleRegisterRequest carries a Google sign-in completed by the client.
// Name, email and picture are taken from Google's answer for AccessToken,
// not from the request.
type GoogleRegisterRequest struct {
	GoogleID        string `json:"googleId" binding:"required"`
	AccessToken     string `json:"accessToken" binding:"required"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// TokenIssuer signs teacher bearer tokens.
type TokenIssuer struct {
	secret string
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

func (i *TokenIssuer) Issue(teacher *models.Teacher) (string, error) {
	return utils.GenerateJWTTokenWithSecret(teacher.ID, teacher.Email, teacher.Name, i.secret, i.issuer, i.ttl)
}

type AuthService struct {
	store           storage.Storage
	states          StateStore
	config          *oauth2.Config
	frontendURL     string
	profileEndpoint string

	exchange     func(ctx context.Context, code string) (*oauth2.Token, error)
	fetchProfile func(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error)
}

func NewAuthService(store storage.Storage, states StateStore, config *oauth2.Config, frontendURL string) *AuthService {
	s := &AuthService{
		store:       store,
		states:      states,
		config:      config,
		frontendURL: frontendURL,
	}
	s.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
		return s.config.Exchange(ctx, code)
	}
	s.fetchProfile = s.googleProfile
	return s
}

// WithProfileEndpoint points profile lookups at another Google API base URL.
func (s *AuthService) WithProfileEndpoint(endpoint string) *AuthService {
	s.profileEndpoint = endpoint
	return s
}

func (s *AuthService) Enabled() bool {
	return s.config != nil && s.config.ClientID != "" && s.config.ClientSecret != ""
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthURL returns the Google consent URL. A non-zero teacherID links the
// resulting tokens to that teacher.
func (s *AuthService) AuthURL(ctx context.Context, teacherID uint) (string, error) {
	if !s.Enabled() {
		return "", ErrOAuthNotConfigured
	}
	state, err := generateState()
	if err != nil {
		return "", err
	}
	if err := s.states.Save(ctx, state, OAuthState{TeacherID: teacherID, CreatedAt: time.Now()}, OAuthStateExpiration); err != nil {
		return "", err
	}
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// HandleCallback validates the state, exchanges the code and stores the
// tokens on the teacher.
func (s *AuthService) HandleCallback(ctx context.Context, state, code string) (*models.Teacher, error) {
	if !s.Enabled() {
		return nil, ErrOAuthNotConfigured
	}
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}
	data, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	token, err := s.exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch google profile: %w", err)
	}

	var teacher *models.Teacher
	if data.TeacherID != 0 {
		teacher, err = s.store.GetTeacher(ctx, data.TeacherID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTeacherNotFound
		}
		if err != nil {
			return nil, err
		}
		if teacher.GoogleID == nil || *teacher.GoogleID != profile.ID {
			owner, err := s.store.GetTeacherByGoogleID(ctx, profile.ID)
			switch {
			case err == nil && owner.ID != teacher.ID:
				return nil, ErrGoogleAccountInUse
			case err != nil && !errors.Is(err, storage.ErrNotFound):
				return nil, err
			}
			teacher.GoogleID = &profile.ID
			if teacher.ProfileImageURL == "" {
				teacher.ProfileImageURL = profile.Picture
			}
			if err := s.store.UpdateTeacher(ctx, teacher); err != nil {
				return nil, err
			}
		}
	} else {
		teacher, err = s.upsertGoogleTeacher(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	expiry := token.Expiry
	if err := s.store.UpdateTeacherTokens(ctx, teacher.ID, token.AccessToken, token.RefreshToken, &expiry); err != nil {
		return nil, err
	}
	if err := s.store.TouchLastLogin(ctx, teacher.ID, time.Now()); err != nil {
		utils.LogWarning(fmt.Sprintf("[AuthService] Could not update last login for %d: %v", teacher.ID, err))
	}
	utils.LogInfo(fmt.Sprintf("[AuthService] Google account %s linked to teacher %d", profile.Email, teacher.ID))
	return teacher, nil
}

// RegisterGoogle upserts a teacher from a sign-in the client completed
// itself. The access token is checked against Google and must belong to the
// claimed Google account.
func (s *AuthService) RegisterGoogle(ctx context.Context, req *GoogleRegisterRequest) (*models.Teacher, error) {
	googleID := strings.TrimSpace(req.GoogleID)
	if googleID == "" || req.AccessToken == "" {
		return nil, fmt.Errorf("%w: googleId and accessToken are required", ErrMissingFields)
	}

	profile, err := s.fetchProfile(ctx, &oauth2.Token{AccessToken: req.AccessToken, TokenType: "Bearer"})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 401 || apiErr.Code == 403) {
			return nil, fmt.Errorf("%w: %v", ErrGoogleTokenRejected, err)
		}
		return nil, fmt.Errorf("fetch google profile: %w", err)
	}
	if profile.ID != googleID {
		utils.LogWarning(fmt.Sprintf("[AuthService] Access token belongs to %q, not the claimed Google account", profile.ID))
		return nil, ErrGoogleTokenRejected
	}

	teacher, err := s.upsertGoogleTeacher(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTeacherTokens(ctx, teacher.ID, req.AccessToken, "", nil); err != nil {
		return nil, err
	}
	if err := s.store.TouchLastLogin(ctx, teacher.ID, time.Now()); err != nil {
		utils.LogWarning(fmt.Sprintf("[AuthService] Could not update last login for %d: %v", teacher.ID, err))
	}
	return teacher, nil
}

func (s *AuthService) upsertGoogleTeacher(ctx context.Context, profile *GoogleProfile) (*models.Teacher, error) {
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: google id is required", ErrMissingFields)
	}
	teacher, err := s.store.GetTeacherByGoogleID(ctx, profile.ID)
	switch {
	case err == nil:
		teacher.Email = strings.ToLower(strings.TrimSpace(profile.Email))
		if profile.Name != "" {
			teacher.Name = profile.Name
		}
		if profile.Picture != "" {
			teacher.ProfileImageURL = profile.Picture
		}
		if err := s.store.UpdateTeacher(ctx, teacher); err != nil {
			return nil, err
		}
		return teacher, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	googleID := profile.ID
	teacher = &models.Teacher{
		GoogleID:        &googleID,
		Email:           strings.ToLower(strings.TrimSpace(profile.Email)),
		Name:            profile.Name,
		ProfileImageURL: profile.Picture,
		LinkCode:        NewLinkCode(),
		Status:          models.StatusActive,
	}
	if err := s.store.CreateTeacher(ctx, teacher); err != nil {
		return nil, err
	}
	utils.LogInfo(fmt.Sprintf("[AuthService] Created teacher %d from Google account", teacher.ID))
	return teacher, nil
}

func (s *AuthService) googleProfile(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}
	if s.profileEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.profileEndpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &GoogleProfile{ID: info.Id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// FrontendRedirect builds the URL the browser lands on after the callback.
func (s *AuthService) FrontendRedirect(teacher *models.Teacher, err error) string {
	q := url.Values{}
	switch {
	case errors.Is(err, ErrGoogleAccountInUse):
		q.Set("error", "google_account_in_use")
	case err != nil:
		q.Set("error", "google_auth_failed")
	default:
		q.Set("google_connected", "true")
		q.Set("teacherId", fmt.Sprint(teacher.ID))
	}
	return strings.TrimRight(s.frontendURL, "/") + "/?" + q.Encode()
}
