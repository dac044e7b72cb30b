package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"studentfiles/config"
	"studentfiles/models"
	"studentfiles/storage"
	"studentfiles/storage/storagetest"
	"studentfiles/utils"
)

const testSecret = "routes-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router    *gin.Engine
	store     *storage.SQLStorage
	uploadDir string
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:         testSecret,
		JWTExpiration:     time.Hour,
		JWTIssuer:         "test",
		AuthRequired:      true,
		UploadDir:         t.TempDir(),
		MaxFileSize:       64,
		MaxFilesPerUpload: 2,
		DriveBatchSize:    3,
		PurgeRetention:    time.Hour,
	}
	for _, m := range mutate {
		m(cfg)
	}
	store := storagetest.New(t)
	container := NewServiceContainer(cfg, Dependencies{Store: store})
	return &testServer{
		router:    NewRouter(container, nil),
		store:     store,
		uploadDir: cfg.UploadDir,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func tokenFor(t *testing.T, teacher *models.Teacher) string {
	t.Helper()
	token, err := utils.GenerateJWTTokenWithSecret(teacher.ID, teacher.Email, teacher.Name, testSecret, "test", time.Hour)
	require.NoError(t, err)
	return token
}

type part struct {
	field, name string
	content     []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	}))
	return n
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRegisterLoginAndTeacherScope(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/teacher/simple-register", "", map[string]string{
		"name":            "أ. منى",
		"schoolName":      "مدرسة الأمل",
		"email":           "Mona@School.test",
		"driveFolderLink": "https://drive.google.com/drive/folders/1AbCdEfGhIjKlMnOpQrStUvWxYz?usp=sharing",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered struct {
		Teacher models.Teacher `json:"teacher"`
		Token   string         `json:"token"`
	}
	decode(t, w, &registered)
	require.NotEmpty(t, registered.Token)
	require.NotNil(t, registered.Teacher.DriveFolderID)
	assert.Equal(t, "1AbCdEfGhIjKlMnOpQrStUvWxYz", *registered.Teacher.DriveFolderID)
	assert.Equal(t, "mona@school.test", registered.Teacher.Email)
	assert.NotEmpty(t, registered.Teacher.LinkCode)

	path := fmt.Sprintf("/api/teacher/%d", registered.Teacher.ID)

	w = s.doJSON(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.doJSON(t, http.MethodGet, path, registered.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	other := storagetest.Teacher(t, s.store)
	w = s.doJSON(t, http.MethodGet, path, tokenFor(t, other), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.doJSON(t, http.MethodPost, path+"/set-password", registered.Token, map[string]string{"password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.doJSON(t, http.MethodPost, path+"/set-password", registered.Token, map[string]string{"password": "secret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.doJSON(t, http.MethodPost, "/api/teacher/login", "", map[string]string{"email": "mona@school.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.doJSON(t, http.MethodPost, "/api/teacher/login", "", map[string]string{"email": "mona@school.test", "password": "secret-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownTeacherIsNotFound(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.AuthRequired = false })

	w := s.doJSON(t, http.MethodGet, "/api/teacher/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body utils.APIResponse
	decode(t, w, &body)
	assert.False(t, body.Success)

	w = s.doJSON(t, http.MethodGet, "/api/teacher/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentsCRUDAndExcel(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxFileSize = 1 << 20 })
	teacher := storagetest.Teacher(t, s.store)
	token := tokenFor(t, teacher)
	base := fmt.Sprintf("/api/teacher/%d/students", teacher.ID)

	w := s.doJSON(t, http.MethodPost, base, token, map[string]interface{}{
		"civilId": "1234567890", "studentName": "خالد", "grade": "السادس", "classNumber": 1, "subject": "علوم",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.doJSON(t, http.MethodPost, base, token, map[string]interface{}{
		"civilId": "1234567890", "studentName": "خالد", "grade": "السادس", "classNumber": 1, "subject": "علوم",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"اسم الطالب", "رقم الهوية", "الصف", "رقم الفصل", "المادة"},
		{"نورة", "2234567890", "السادس", 2, "علوم"},
		{"خالد", "1234567890", "السادس", 1, "علوم"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	var xlsx bytes.Buffer
	require.NoError(t, f.Write(&xlsx))
	require.NoError(t, f.Close())

	body, contentType := multipartBody(t, nil, part{"file", "students.xlsx", xlsx.Bytes()})
	req := httptest.NewRequest(http.MethodPost, base+"/upload-excel", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var imported struct {
		Added      int `json:"added"`
		Duplicates int `json:"duplicates"`
		Total      int `json:"total"`
	}
	decode(t, w, &imported)
	assert.Equal(t, 1, imported.Added)
	assert.Equal(t, 1, imported.Duplicates)
	assert.Equal(t, 2, imported.Total)

	w = s.doJSON(t, http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var students []models.Student
	decode(t, w, &students)
	assert.Len(t, students, 2)

	w = s.doJSON(t, http.MethodGet, base+"/excel-template", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "students_template.xlsx")
	_, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)
}

func TestCreateFoldersWithoutDriveFolder(t *testing.T) {
	s := newTestServer(t)
	teacher := storagetest.Teacher(t, s.store)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/teacher/%d/create-student-folders", teacher.ID), nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, teacher))
	w := s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateFoldersLogicalFallback(t *testing.T) {
	s := newTestServer(t)
	folder := "root-folder"
	teacher := storagetest.Teacher(t, s.store, func(tc *models.Teacher) { tc.DriveFolderID = &folder })
	storagetest.Student(t, s.store, teacher.ID, "1234567890", "ريم")

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/teacher/%d/create-student-folders", teacher.ID), nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, teacher))
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.FolderProvisionResult
	decode(t, w, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Created)
}

func TestUploadServeAndDelete(t *testing.T) {
	s := newTestServer(t)
	teacher := storagetest.Teacher(t, s.store)
	student := storagetest.Student(t, s.store, teacher.ID, "1234567890", "ريم")
	token := tokenFor(t, teacher)
	uploadPath := fmt.Sprintf("/api/teacher/%d/students/%d/upload", teacher.ID, student.ID)

	body, contentType := multipartBody(t,
		map[string]string{"category": "اختبارات", "description": "اختبار الفصل الأول"},
		part{"files", "exam.pdf", []byte("%PDF-1.4 small")},
	)
	req := httptest.NewRequest(http.MethodPost, uploadPath, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded struct {
		Message  string        `json:"message"`
		Files    []models.File `json:"files"`
		Warnings []string      `json:"warnings"`
	}
	decode(t, w, &uploaded)
	require.Len(t, uploaded.Files, 1)
	file := uploaded.Files[0]
	assert.Equal(t, "رياضيات", file.Subject)
	assert.Equal(t, models.CategoryExams, file.FileCategory)
	assert.True(t, strings.HasPrefix(file.SystemName, "1234567890_"))
	assert.Empty(t, uploaded.Warnings)

	w = s.do(httptest.NewRequest(http.MethodGet, file.FileURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 small", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = s.doJSON(t, http.MethodGet, fmt.Sprintf("/api/student/%s/files?teacherId=%d", student.CivilID, teacher.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byCivil []models.File
	decode(t, w, &byCivil)
	assert.Len(t, byCivil, 1)

	w = s.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/teacher/%d/files/%d", teacher.ID, file.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.doJSON(t, http.MethodGet, fmt.Sprintf("/api/teacher/%d/students/%d/files", teacher.ID, student.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Files []models.File `json:"files"`
	}
	decode(t, w, &listed)
	assert.Empty(t, listed.Files)
}

func TestUploadRejectedBeforeAnyWrite(t *testing.T) {
	s := newTestServer(t)
	teacher := storagetest.Teacher(t, s.store)
	student := storagetest.Student(t, s.store, teacher.ID, "1234567890", "ريم")
	uploadPath := fmt.Sprintf("/api/teacher/%d/students/%d/upload", teacher.ID, student.ID)

	small := []byte("ok")
	tests := []struct {
		name   string
		fields map[string]string
		parts  []part
		status int
	}{
		{"file over limit", nil, []part{{"files", "a.pdf", small}, {"files", "big.pdf", bytes.Repeat([]byte("x"), 65)}}, http.StatusRequestEntityTooLarge},
		{"body over limit", nil, []part{{"files", "huge.pdf", bytes.Repeat([]byte("x"), 2<<20)}}, http.StatusRequestEntityTooLarge},
		{"too many files", nil, []part{{"files", "a.pdf", small}, {"files", "b.pdf", small}, {"files", "c.pdf", small}}, http.StatusBadRequest},
		{"no files", map[string]string{"subject": "علوم"}, nil, http.StatusBadRequest},
		{"unknown category", map[string]string{"category": "رياضة"}, []part{{"files", "a.pdf", small}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fields, tt.parts...)
			req := httptest.NewRequest(http.MethodPost, uploadPath, body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, teacher))
			w := s.do(req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Zero(t, countFiles(t, s.uploadDir))
		})
	}
}

func TestServeFileErrors(t *testing.T) {
	s := newTestServer(t)
	outside := filepath.Join(filepath.Dir(s.uploadDir), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/files/1/1234567890/missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/files/..%2Fsecret.txt", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParentPortal(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	teacher := storagetest.Teacher(t, s.store, func(tc *models.Teacher) { tc.LinkCode = "abc123" })
	student := storagetest.Student(t, s.store, teacher.ID, "1234567890", "ريم")
	for _, category := range []models.FileCategory{models.CategoryExams, models.CategoryHomework} {
		require.NoError(t, s.store.CreateFile(ctx, &models.File{
			StudentCivilID: student.CivilID, Subject: "رياضيات", FileCategory: category,
			OriginalName: "f.pdf", SystemName: "f.pdf", FilePath: "p", FileURL: "/api/files/p", TeacherID: teacher.ID,
		}))
	}

	w := s.doJSON(t, http.MethodGet, "/api/captcha", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no questions seeded yet")

	require.NoError(t, s.store.CreateCaptcha(ctx, &models.CaptchaQuestion{Question: "2 + 2", Answer: "4", Status: models.StatusActive}))
	w = s.doJSON(t, http.MethodGet, "/api/captcha", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var captcha struct {
		ID       uint   `json:"id"`
		Question string `json:"question"`
	}
	decode(t, w, &captcha)
	assert.Equal(t, "2 + 2", captcha.Question)
	assert.NotContains(t, w.Body.String(), "answer")

	w = s.doJSON(t, http.MethodGet, "/api/link/abc123", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), teacher.SchoolName)

	w = s.doJSON(t, http.MethodGet, "/api/link/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	verify := func(civilID, answer string) *httptest.ResponseRecorder {
		return s.doJSON(t, http.MethodPost, "/api/verify-student", "", map[string]interface{}{
			"linkCode": "abc123", "civilId": civilID, "captchaId": captcha.ID, "captchaAnswer": answer,
		})
	}

	w = verify("1234567890", "4")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Student models.StudentIdentity `json:"student"`
		Teacher models.PublicTeacher   `json:"teacher"`
		Files   models.GroupedFiles    `json:"files"`
	}
	decode(t, w, &result)
	assert.Equal(t, "ريم", result.Student.Name)
	assert.Equal(t, teacher.Name, result.Teacher.Name)
	assert.Len(t, result.Files["رياضيات"], 2)

	assert.Equal(t, http.StatusBadRequest, verify("1234567890", "four").Code)
	assert.Equal(t, http.StatusNotFound, verify("9999999999", "4").Code)
	assert.Equal(t, http.StatusBadRequest, verify("", "4").Code)
}

func TestParentPortalRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.ParentRateLimit = 0.001
		c.ParentRateBurst = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, s.doJSON(t, http.MethodGet, "/api/link/whatever", "", nil).Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestGoogleAuthNotConfigured(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodGet, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.doJSON(t, http.MethodGet, "/api/google-callback?state=x&code=y", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "error=google_auth_failed")
}

// newGoogleAPI serves the userinfo endpoint for a fixed set of access tokens.
func newGoogleAPI(t *testing.T, accounts map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		googleID, ok := accounts[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if r.URL.Path != "/oauth2/v2/userinfo" || !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":      googleID,
			"email":   googleID + "@gmail.test",
			"name":    "Teacher " + googleID,
			"picture": "https://img.test/" + googleID,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleRegisterRejectsForgedAccount(t *testing.T) {
	google := newGoogleAPI(t, map[string]string{
		"victim-token":   "google-victim-1",
		"attacker-token": "google-attacker",
	})
	s := newTestServer(t, func(c *config.Config) { c.GoogleAPIEndpoint = google.URL + "/" })

	googleID := "google-victim-1"
	victim := storagetest.Teacher(t, s.store, func(tc *models.Teacher) {
		tc.GoogleID = &googleID
		tc.Email = "victim@school.test"
		tc.PasswordHash = "hash"
	})

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"token of another account", map[string]string{"googleId": googleID, "accessToken": "attacker-token", "email": "attacker@evil.test", "name": "Attacker"}, http.StatusUnauthorized},
		{"token google rejects", map[string]string{"googleId": googleID, "accessToken": "made-up"}, http.StatusUnauthorized},
		{"no token", map[string]string{"googleId": googleID, "email": "attacker@evil.test", "name": "Attacker"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.doJSON(t, http.MethodPost, "/api/auth/google/register", "", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotContains(t, w.Body.String(), `"token"`)
		})
	}

	stored, err := s.store.GetTeacher(context.Background(), victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "victim@school.test", stored.Email)
	assert.Empty(t, stored.AccessToken)

	w := s.doJSON(t, http.MethodPost, "/api/auth/google/register", "", map[string]string{
		"googleId": googleID, "accessToken": "victim-token", "email": "ignored@evil.test",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Teacher models.Teacher `json:"teacher"`
		Token   string         `json:"token"`
	}
	decode(t, w, &resp)
	assert.Equal(t, victim.ID, resp.Teacher.ID)
	assert.Equal(t, "google-victim-1@gmail.test", resp.Teacher.Email)

	w = s.doJSON(t, http.MethodGet, fmt.Sprintf("/api/teacher/%d/students", victim.ID), resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
