package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"talkitout/internal/domain"
)

const testBucket = "talkitout-test.appspot.com"

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"clip.m4a":           "audio/mp4",
		"clip.M4A":           "audio/mp4",
		"song.mp3":           "audio/mpeg",
		"raw.wav":            "audio/wav",
		"video.mp4":          "video/mp4",
		"video.mov":          "video/quicktime",
		"clip.xyz":           "application/octet-stream",
		"noext":              "application/octet-stream",
		"/tmp/rec/entry.m4a": "audio/mp4",
		"text_entries/a.txt": "application/octet-stream",
	}
	for path, want := range cases {
		assert.Equal(t, want, ContentTypeFor(path), path)
	}
}

func TestUploadTagsContentTypeAndReturnsDownloadURL(t *testing.T) {
	t.Parallel()

	fake := newFakeBucket(t)
	store := newTestStore(t, fake)

	local := filepath.Join(t.TempDir(), "clip.m4a")
	require.NoError(t, os.WriteFile(local, []byte("audio-bytes"), 0o600))

	locator, err := store.Upload(context.Background(), local, "recordings/abc.m4a")
	require.NoError(t, err)

	obj := fake.object("recordings/abc.m4a")
	require.NotNil(t, obj)
	assert.Equal(t, "audio/mp4", obj.contentType)
	assert.Equal(t, "audio/mp4", obj.mediaType)
	assert.Equal(t, "audio-bytes", obj.body)
	assert.Equal(t, "token-1", obj.token)

	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/"+testBucket+"/o/recordings%2Fabc.m4a?alt=media&token=token-1",
		locator,
	)
}

func TestUploadUnknownExtensionUsesOctetStream(t *testing.T) {
	t.Parallel()

	fake := newFakeBucket(t)
	store := newTestStore(t, fake)

	local := filepath.Join(t.TempDir(), "clip.xyz")
	require.NoError(t, os.WriteFile(local, []byte("?"), 0o600))

	_, err := store.Upload(context.Background(), local, "recordings/clip.xyz")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", fake.object("recordings/clip.xyz").contentType)
}

func TestUploadTextUsesSameAddressing(t *testing.T) {
	t.Parallel()

	fake := newFakeBucket(t)
	store := newTestStore(t, fake)

	locator, err := store.UploadText(context.Background(), "Dear diary, ünïcode", "text_entries/t1.txt")
	require.NoError(t, err)
	assert.Contains(t, locator, "/o/text_entries%2Ft1.txt?alt=media")

	obj := fake.object("text_entries/t1.txt")
	require.NotNil(t, obj)
	assert.Equal(t, textContentType, obj.contentType)
	assert.Equal(t, "Dear diary, ünïcode", obj.body)
}

func TestUploadFailureIsUploadError(t *testing.T) {
	t.Parallel()

	fake := newFakeBucket(t)
	fake.failWith = http.StatusForbidden
	store := newTestStore(t, fake)

	_, err := store.UploadText(context.Background(), "x", "text_entries/t.txt")
	var uploadErr *domain.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "text_entries/t.txt", uploadErr.Path)

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
}

func TestUploadMissingLocalFileIsUploadError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, newFakeBucket(t))

	_, err := store.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.m4a"), "recordings/gone.m4a")
	var uploadErr *domain.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDownloadRoundTripsText(t *testing.T) {
	t.Parallel()

	fake := newFakeBucket(t)
	store := newTestStore(t, fake)

	locator, err := store.UploadText(context.Background(), "hello again", "text_entries/t2.txt")
	require.NoError(t, err)

	text, err := store.Download(context.Background(), locator)
	require.NoError(t, err)
	assert.Equal(t, "hello again", text)
}

func TestDownloadRejectsForeignLocators(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, newFakeBucket(t))

	for _, locator := range []string{
		"https://example.com/v0/b/" + testBucket + "/o/x.txt",
		"https://firebasestorage.googleapis.com/v0/b/other-bucket/o/x.txt",
		"https://firebasestorage.googleapis.com/v0/b/" + testBucket + "/o/",
	} {
		_, err := store.Download(context.Background(), locator)
		assert.ErrorIs(t, err, ErrForeignLocator, locator)
	}
}

func TestNewCloudStoreRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewCloudStore(context.Background(), Config{Anonymous: true}, nil)
	require.Error(t, err)
}

type storedObject struct {
	contentType string
	mediaType   string
	token       string
	body        string
}

type fakeBucket struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	objects  map[string]*storedObject
	failWith int
}

func newFakeBucket(t *testing.T) *fakeBucket {
	t.Helper()
	f := &fakeBucket{t: t, objects: make(map[string]*storedObject)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBucket) object(name string) *storedObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[name]
}

func (f *fakeBucket) handle(w http.ResponseWriter, r *http.Request) {
	if f.failWith != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.failWith)
		_, _ = io.WriteString(w, `{"error": {"code": 403, "message": "denied"}}`)
		return
	}

	switch r.Method {
	case http.MethodPost:
		f.handleInsert(w, r)
	case http.MethodGet:
		f.handleGet(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeBucket) handleInsert(w http.ResponseWriter, r *http.Request) {
	assert.Contains(f.t, r.URL.Path, "/b/"+testBucket+"/o")

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !assert.NoError(f.t, err) || !assert.True(f.t, strings.HasPrefix(mediaType, "multipart/")) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	reader := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := reader.NextPart()
	if !assert.NoError(f.t, err) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var meta struct {
		Name        string            `json:"name"`
		ContentType string            `json:"contentType"`
		Metadata    map[string]string `json:"metadata"`
	}
	if !assert.NoError(f.t, json.NewDecoder(metaPart).Decode(&meta)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mediaPart, err := reader.NextPart()
	if !assert.NoError(f.t, err) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(mediaPart)
	if !assert.NoError(f.t, err) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.objects[meta.Name] = &storedObject{
		contentType: meta.ContentType,
		mediaType:   mediaPart.Header.Get("Content-Type"),
		token:       meta.Metadata[downloadTokenKey],
		body:        string(body),
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"bucket":      testBucket,
		"name":        meta.Name,
		"contentType": meta.ContentType,
	})
}

func (f *fakeBucket) handleGet(w http.ResponseWriter, r *http.Request) {
	_, name, ok := strings.Cut(r.URL.Path, "/b/"+testBucket+"/o/")
	obj := f.object(name)
	if !ok || obj == nil || r.URL.Query().Get("alt") != "media" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", obj.contentType)
	_, _ = io.WriteString(w, obj.body)
}

func newTestStore(t *testing.T, fake *fakeBucket) *CloudStore {
	t.Helper()

	store, err := NewCloudStore(context.Background(), Config{
		Bucket:     testBucket,
		Endpoint:   fake.srv.URL + "/storage/v1/",
		HTTPClient: fake.srv.Client(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var mu sync.Mutex
	n := 0
	store.newToken = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "token-" + string(rune('0'+n))
	}
	return store
}
