package rest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/dbx"
	"github.com/dmitrijs2005/ingestor/internal/logging"
	"github.com/dmitrijs2005/ingestor/internal/server/auth"
	"github.com/dmitrijs2005/ingestor/internal/server/config"
	"github.com/dmitrijs2005/ingestor/internal/server/ingest"
	"github.com/dmitrijs2005/ingestor/internal/server/models"
	"github.com/dmitrijs2005/ingestor/internal/server/objectstore"
	"github.com/dmitrijs2005/ingestor/internal/server/query"
	"github.com/dmitrijs2005/ingestor/internal/server/repositories/filerecords"
	usersrepo "github.com/dmitrijs2005/ingestor/internal/server/repositories/users"
	"github.com/dmitrijs2005/ingestor/internal/server/services"
)

// --- in-memory backends ---

type memRecords struct {
	mu   sync.Mutex
	recs map[string]*models.FileRecord
}

func newMemRecords() *memRecords { return &memRecords{recs: make(map[string]*models.FileRecord)} }

func (m *memRecords) CreateRaw(ctx context.Context, rec *models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.recs[rec.PK]; ok && cur.Status == models.StatusProcessed {
		return common.ErrAlreadyProcessed
	}
	cp := *rec
	m.recs[rec.PK] = &cp
	return nil
}

func (m *memRecords) MarkProcessed(ctx context.Context, pk, bucket, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[pk]
	if !ok {
		return common.ErrorNotFound
	}
	rec.Status = models.StatusProcessed
	rec.Bucket, rec.Key = bucket, key
	if rec.ProcessedAt == nil {
		rec.ProcessedAt = &at
	}
	return nil
}

func (m *memRecords) GetByPK(ctx context.Context, pk string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[pk]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRecords) matching(f filerecords.Filter) []*models.FileRecord {
	var out []*models.FileRecord
	for _, rec := range m.recs {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if (f.From != nil || f.To != nil) && rec.ProcessedAt == nil {
			continue
		}
		if f.From != nil && rec.ProcessedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && rec.ProcessedAt.After(*f.To) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PK < out[j].PK })
	return out
}

func (m *memRecords) List(ctx context.Context, f filerecords.Filter) ([]*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matching(f)
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRecords) Count(ctx context.Context, f filerecords.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(f))), nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: make(map[string][]byte)} }

func (m *memStore) oid(bucket, key string) string { return bucket + "/" + key }

func (m *memStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[m.oid(bucket, key)]
	if !ok {
		return nil, 0, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memStore) Head(ctx context.Context, bucket, key string) (*objectstore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[m.oid(bucket, key)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &objectstore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.oid(bucket, key)] = data
	return nil
}

func (m *memStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[m.oid(srcBucket, srcKey)]
	if !ok {
		return common.ErrorNotFound
	}
	m.objects[m.oid(dstBucket, dstKey)] = data
	return nil
}

func (m *memStore) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, m.oid(bucket, key))
	return nil
}

func (m *memStore) List(ctx context.Context, bucket, prefix string) ([]objectstore.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []objectstore.ObjectInfo
	for id, data := range m.objects {
		key, ok := strings.CutPrefix(id, bucket+"/")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, objectstore.ObjectInfo{Key: key, Size: int64(len(data))})
	}
	return out, nil
}

func (m *memStore) EnsureBucket(ctx context.Context, bucket string) error { return nil }

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*models.User), byID: make(map[string]*models.User)}
}

func (m *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, common.ErrorEmailTaken
	}
	cp := *u
	cp.CreatedAt = time.Now()
	m.byEmail[cp.Email] = &cp
	m.byID[cp.ID] = &cp
	return &cp, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type memRepoManager struct {
	users   *memUsers
	records *memRecords
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *memRepoManager) FileRecords(db dbx.DBTX) filerecords.Repository {
	return m.records
}

// --- test server ---

type testEnv struct {
	server  *Server
	store   *memStore
	records *memRecords
	pool    *ingest.Pool
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	store := newMemStore()
	records := newMemRecords()
	rm := &memRepoManager{users: newMemUsers(), records: records}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing().WillReturnError(nil)

	pipeline := ingest.NewPipeline(store, records, cfg.ProcessedBucket, cfg.ProcessedPrefix, logger)
	pool := ingest.NewPool(2, time.Second, pipeline, logger)
	pool.Start()
	t.Cleanup(pool.Shutdown)

	server := NewServer(cfg,
		services.NewUserService(db, rm, cfg),
		services.NewFileService(store, cfg.UploadBucket),
		query.NewService(records),
		pool, db, logger)

	return &testEnv{server: server, store: store, records: records, pool: pool, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerUser(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":"u","email":%q,"password":"pw"}`, email)
	w := e.do(t, http.MethodPost, "/auth/register", "", strings.NewReader(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.Token
}

// --- auth ---

func TestRegisterLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	env.registerUser(t, "a@b.c")

	w := env.do(t, http.MethodPost, "/auth/login", "",
		strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.User == nil {
		t.Fatalf("incomplete response: %s", w.Body)
	}
	if _, err := auth.GetUserIDFromToken(resp.Token, []byte(env.cfg.SecretKey)); err != nil {
		t.Errorf("returned token does not verify: %v", err)
	}
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "a@b.c")

	w := env.do(t, http.MethodPost, "/auth/register", "",
		strings.NewReader(`{"name":"u","email":"a@b.c","password":"pw"}`))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestLogin_BadPasswordUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "a@b.c")

	w := env.do(t, http.MethodPost, "/auth/login", "",
		strings.NewReader(`{"email":"a@b.c","password":"wrong"}`))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

// --- event intake ---

// waitForProcessed polls until the record reaches PROCESSED and returns it.
func waitForProcessed(t *testing.T, env *testEnv, pk string) *models.FileRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := env.records.GetByPK(context.Background(), pk)
		if err == nil && rec.Status == models.StatusProcessed {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("record %s never reached PROCESSED: rec=%v err=%v", pk, rec, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIngestEvents_EnvelopeAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.store.objects[env.store.oid(env.cfg.UploadBucket, "doc.csv")] = []byte("a,b\n1,2\n")

	body := fmt.Sprintf(`{"Records":[{"s3":{"bucket":{"name":%q},"object":{"key":"doc.csv","size":8,"eTag":"e1"}}}]}`,
		env.cfg.UploadBucket)
	w := env.do(t, http.MethodPost, "/events", "", strings.NewReader(body))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	waitForProcessed(t, env, "file#doc.csv")

	if _, ok := env.store.objects[env.store.oid(env.cfg.UploadBucket, "doc.csv")]; ok {
		t.Errorf("source object not deleted")
	}
	if _, ok := env.store.objects[env.store.oid(env.cfg.ProcessedBucket, env.cfg.ProcessedPrefix+"doc.csv")]; !ok {
		t.Errorf("processed copy missing")
	}
}

func TestIngestEvents_BareNotificationAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.store.objects[env.store.oid(env.cfg.UploadBucket, "x.bin")] = []byte("x")

	body := fmt.Sprintf(`{"bucket":%q,"key":"x.bin","size":1,"etag":"e"}`, env.cfg.UploadBucket)
	w := env.do(t, http.MethodPost, "/events", "", strings.NewReader(body))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
}

func TestIngestEvents_FlatListAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.store.objects[env.store.oid(env.cfg.UploadBucket, "a.bin")] = []byte("a")
	env.store.objects[env.store.oid(env.cfg.UploadBucket, "b.bin")] = []byte("b")

	body := fmt.Sprintf(`{"records":[{"bucket":%[1]q,"key":"a.bin"},{"bucket":%[1]q,"key":"b.bin"}]}`,
		env.cfg.UploadBucket)
	w := env.do(t, http.MethodPost, "/events", "", strings.NewReader(body))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Accepted int `json:"accepted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Accepted != 2 {
		t.Fatalf("accepted = %d, want 2", resp.Accepted)
	}

	// the flat shape must reach the pipeline, not be misread as an
	// envelope of empty records
	waitForProcessed(t, env, "file#a.bin")
	waitForProcessed(t, env, "file#b.bin")
}

// TestIngestEvents_EnvelopeKeyDecoded checks that URL-encoded keys from the
// event source are decoded before lookup: a space arrives as "+" and
// specials arrive percent-encoded.
func TestIngestEvents_EnvelopeKeyDecoded(t *testing.T) {
	env := newTestEnv(t)
	env.store.objects[env.store.oid(env.cfg.UploadBucket, "docs/q1 report (final).csv")] = []byte("a,b\n")

	body := fmt.Sprintf(`{"Records":[{"s3":{"bucket":{"name":%q},"object":{"key":"docs/q1+report+%%28final%%29.csv","size":4,"eTag":"e1"}}}]}`,
		env.cfg.UploadBucket)
	w := env.do(t, http.MethodPost, "/events", "", strings.NewReader(body))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	rec := waitForProcessed(t, env, "file#docs/q1 report (final).csv")
	if rec.Key != env.cfg.ProcessedPrefix+"docs/q1 report (final).csv" {
		t.Errorf("processed key = %q", rec.Key)
	}
	if _, ok := env.store.objects[env.store.oid(env.cfg.UploadBucket, "docs/q1 report (final).csv")]; ok {
		t.Errorf("source object not deleted")
	}
}

func TestIngestEvents_MalformedRejected(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{}`, `{"Records":[{"s3":{}}]}`, `not json`} {
		w := env.do(t, http.MethodPost, "/events", "", strings.NewReader(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

// --- metadata queries ---

func seedProcessed(env *testEnv, n int, at time.Time) {
	for i := 0; i < n; i++ {
		ts := at
		env.records.recs[fmt.Sprintf("file#doc-%02d", i)] = &models.FileRecord{
			PK:          fmt.Sprintf("file#doc-%02d", i),
			Bucket:      env.cfg.ProcessedBucket,
			Key:         fmt.Sprintf("processed/doc-%02d", i),
			Status:      models.StatusProcessed,
			ProcessedAt: &ts,
		}
	}
}

func TestListRecords_FiltersAndPagination(t *testing.T) {
	env := newTestEnv(t)
	seedProcessed(env, 25, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	env.records.recs["file#raw-1"] = &models.FileRecord{PK: "file#raw-1", Status: models.StatusRaw}

	w := env.do(t, http.MethodGet, "/files?status=PROCESSED&limit=10&page=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var listing struct {
		Items []*models.FileRecord `json:"items"`
		Total int64                `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listing.Total != 25 || len(listing.Items) != 10 {
		t.Fatalf("total=%d len=%d, want 25/10", listing.Total, len(listing.Items))
	}
	if listing.Items[0].PK != "file#doc-10" {
		t.Errorf("page 1 starts at %q", listing.Items[0].PK)
	}
}

func TestListRecords_DateRange(t *testing.T) {
	env := newTestEnv(t)
	seedProcessed(env, 3, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	env.records.recs["file#raw-1"] = &models.FileRecord{PK: "file#raw-1", Status: models.StatusRaw}

	w := env.do(t, http.MethodGet, "/files?from=2026-01-01&to=2026-02-01T00:00:00Z", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var listing struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listing.Total != 3 {
		t.Fatalf("total = %d, want 3", listing.Total)
	}
}

func TestListRecords_BadParams(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{
		"/files?status=PENDING",
		"/files?limit=0",
		"/files?limit=abc",
		"/files?page=-1",
		"/files?from=yesterday",
	} {
		w := env.do(t, http.MethodGet, target, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, w.Code)
		}
	}
}

func TestGetRecord_PrefixOptional(t *testing.T) {
	env := newTestEnv(t)
	seedProcessed(env, 1, time.Now())

	for _, id := range []string{"doc-00", url.PathEscape("file#doc-00")} {
		w := env.do(t, http.MethodGet, "/files/"+id, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("id %q: status = %d, body %s", id, w.Code, w.Body)
		}
	}

	w := env.do(t, http.MethodGet, "/files/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing id: status = %d, want 404", w.Code)
	}
}

// --- per-user objects ---

func multipartBody(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUserFiles_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/user/files"},
		{http.MethodGet, "/user/files"},
		{http.MethodGet, "/user/files/u1/a.txt"},
		{http.MethodDelete, "/user/files/u1/a.txt"},
	} {
		w := env.do(t, tc.method, tc.target, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.target, w.Code)
		}
	}

	w := env.do(t, http.MethodGet, "/user/files", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}
}

// TestUserFiles_TokenForDeletedUserRejected ensures a well-signed token whose
// subject has no account anymore does not pass the middleware.
func TestUserFiles_TokenForDeletedUserRejected(t *testing.T) {
	env := newTestEnv(t)

	token, err := auth.GenerateToken("ghost-id", "ghost@b.c", []byte(env.cfg.SecretKey), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	w := env.do(t, http.MethodGet, "/user/files", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUserFiles_UploadListDownloadDelete(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "a@b.c")

	body, contentType := multipartBody(t, "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/user/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body)
	}
	var uploaded struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasSuffix(uploaded.Key, "-notes.txt") {
		t.Fatalf("unexpected key %q", uploaded.Key)
	}

	w = env.do(t, http.MethodGet, "/user/files", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var infos []objectstore.ObjectInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != uploaded.Key {
		t.Fatalf("list = %+v", infos)
	}

	w = env.do(t, http.MethodGet, "/user/files/"+uploaded.Key, token, nil)
	if w.Code != http.StatusOK || w.Body.String() != "hello" {
		t.Fatalf("download status = %d body %q", w.Code, w.Body)
	}

	w = env.do(t, http.MethodDelete, "/user/files/"+uploaded.Key, token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/user/files/"+uploaded.Key, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("after delete status = %d, want 404", w.Code)
	}
}

func TestUserFiles_ForeignKeyForbidden(t *testing.T) {
	env := newTestEnv(t)
	tokenA := env.registerUser(t, "a@b.c")
	tokenB := env.registerUser(t, "b@b.c")

	body, contentType := multipartBody(t, "secret.txt", "mine")
	req := httptest.NewRequest(http.MethodPost, "/user/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", w.Code)
	}
	var uploaded struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = env.do(t, http.MethodGet, "/user/files/"+uploaded.Key, tokenB, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("cross-user download status = %d, want 403", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/user/files/"+uploaded.Key, tokenB, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("cross-user delete status = %d, want 403", w.Code)
	}
}

// --- health ---

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"connected"`) {
		t.Errorf("unexpected body %s", w.Body)
	}
}
