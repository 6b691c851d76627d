package backup

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"famly/internal/database"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	putErr   error
	getErr   error
	delErr   error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{
		objects:  make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.modified[*input.Key] = time.Now().UTC()
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	delete(m.modified, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key := range m.objects {
		if input.Prefix != nil && !strings.HasPrefix(key, *input.Prefix) {
			continue
		}
		mod := m.modified[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(mod),
		})
	}
	return out, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

func testConfig(dbPath string) Config {
	return Config{
		S3: S3Config{
			Bucket:    "famly-backups",
			Region:    "auto",
			AccessKey: "test",
			SecretKey: "test",
		},
		DBPath:        dbPath,
		Passphrase:    "family-secret",
		ScheduleHour:  3,
		RetentionDays: 30,
	}
}

func setupBackupTest(t *testing.T) (*Manager, *mockS3Client) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "famly.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(testConfig(dbPath), db, nil)
	mock := newMockS3()
	m.client = mock
	return m, mock
}

func TestManagerDisabledWithoutConfig(t *testing.T) {
	m := NewManager(Config{}, nil, nil)
	if m.Enabled() {
		t.Error("expected disabled without S3 config")
	}
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// Start on a disabled manager is a no-op and Stop must not hang.
	m.Start(context.Background())
	m.Stop()
}

func TestManagerDisabledWithoutPassphrase(t *testing.T) {
	cfg := testConfig("x.db")
	cfg.Passphrase = ""
	m := NewManager(cfg, nil, nil)
	if m.Enabled() {
		t.Error("expected disabled without passphrase")
	}
}

func TestRunNowUploadsDecryptableSnapshot(t *testing.T) {
	m, mock := setupBackupTest(t)

	key, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if !strings.HasPrefix(key, keyPrefix) {
		t.Errorf("key = %q, want %q prefix", key, keyPrefix)
	}

	mock.mu.Lock()
	encrypted := mock.objects[key]
	mock.mu.Unlock()
	if len(encrypted) == 0 {
		t.Fatal("expected uploaded object")
	}

	plaintext, err := Decrypt(encrypted, "family-secret")
	if err != nil {
		t.Fatalf("decrypt uploaded backup: %v", err)
	}
	if !bytes.HasPrefix(plaintext, []byte("SQLite format 3")) {
		t.Error("decrypted backup is not a SQLite database")
	}

	status := m.Status()
	if status.State != StateIdle {
		t.Errorf("state = %q, want %q", status.State, StateIdle)
	}
	if status.LastBackup == nil {
		t.Error("expected last backup timestamp")
	}
	if status.LastKey != key {
		t.Errorf("last key = %q, want %q", status.LastKey, key)
	}
}

func TestStatusCallback(t *testing.T) {
	m, _ := setupBackupTest(t)

	var mu sync.Mutex
	var states []State
	m.callback = func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}

	if _, err := m.RunNow(context.Background()); err != nil {
		t.Fatalf("run backup: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateRunning || states[len(states)-1] != StateIdle {
		t.Errorf("states = %v, want running then idle", states)
	}
}

func TestCleanupDeletesOnlyExpired(t *testing.T) {
	m, mock := setupBackupTest(t)

	mock.objects[keyPrefix+"backup-old.db.enc"] = []byte("old")
	mock.modified[keyPrefix+"backup-old.db.enc"] = time.Now().UTC().AddDate(0, 0, -60)
	mock.objects[keyPrefix+"backup-new.db.enc"] = []byte("new")
	mock.modified[keyPrefix+"backup-new.db.enc"] = time.Now().UTC()

	if err := m.Cleanup(context.Background(), 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if _, ok := mock.objects[keyPrefix+"backup-old.db.enc"]; ok {
		t.Error("expired backup should be deleted")
	}
	if _, ok := mock.objects[keyPrefix+"backup-new.db.enc"]; !ok {
		t.Error("recent backup should be kept")
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	m, _ := setupBackupTest(t)

	key, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	body, err := m.Download(context.Background(), key)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if _, err := Decrypt(data, "family-secret"); err != nil {
		t.Errorf("downloaded backup should decrypt: %v", err)
	}
}

func TestStopSafety(t *testing.T) {
	m, _ := setupBackupTest(t)

	m.Start(context.Background())
	m.Stop()
	// Second stop must not panic or hang.
	m.Stop()
}
