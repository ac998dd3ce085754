// Package storage uploads recordings and text to a Firebase/GCS bucket and
// resolves Firebase download URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"

	"talkitout/internal/domain"
)

const (
	downloadTokenKey    = "firebaseStorageDownloadTokens"
	defaultDownloadBase = "https://firebasestorage.googleapis.com"
	maxTextBytes        = 4 << 20
)

// ErrForeignLocator is returned for locators this store did not issue.
var ErrForeignLocator = errors.New("locator does not belong to this bucket")

// Config controls the object store client.
type Config struct {
	Bucket          string
	CredentialsFile string
	Endpoint        string
	DownloadBaseURL string
	Anonymous       bool
	HTTPClient      *http.Client
}

// CloudStore implements ports.Uploader and ports.Downloader.
type CloudStore struct {
	objects      *gcs.ObjectsService
	bucket       string
	downloadBase *url.URL
	newToken     func() string
	logger       *slog.Logger
}

func NewCloudStore(ctx context.Context, cfg Config, logger *slog.Logger) (*CloudStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage bucket is not configured")
	}
	if cfg.DownloadBaseURL == "" {
		cfg.DownloadBaseURL = defaultDownloadBase
	}
	base, err := url.Parse(strings.TrimRight(cfg.DownloadBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid storage download base URL: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Anonymous:
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &CloudStore{
		objects:      svc.Objects,
		bucket:       cfg.Bucket,
		downloadBase: base,
		newToken:     uuid.NewString,
		logger:       logger,
	}, nil
}

// Upload stores the file at localPath under destPath, tagged with a content
// type inferred from the local file extension.
func (s *CloudStore) Upload(ctx context.Context, localPath string, destPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", &domain.UploadError{Path: destPath, Err: err}
	}
	defer f.Close()

	return s.put(ctx, f, destPath, ContentTypeFor(localPath))
}

// UploadText stores UTF-8 text under destPath.
func (s *CloudStore) UploadText(ctx context.Context, text string, destPath string) (string, error) {
	return s.put(ctx, strings.NewReader(text), destPath, textContentType)
}

func (s *CloudStore) put(ctx context.Context, body io.Reader, name string, contentType string) (string, error) {
	token := s.newToken()
	object := &gcs.Object{
		Name:        name,
		ContentType: contentType,
		Metadata:    map[string]string{downloadTokenKey: token},
	}

	stored, err := s.objects.Insert(s.bucket, object).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", &domain.UploadError{Path: name, Err: err}
	}
	if stored.Name != "" {
		name = stored.Name
	}

	s.logger.Debug("object stored", slog.String("path", name), slog.String("content_type", contentType))
	return s.locator(name, token), nil
}

// Download fetches text stored under a locator issued by this store.
func (s *CloudStore) Download(ctx context.Context, locator string) (string, error) {
	name, err := s.objectName(locator)
	if err != nil {
		return "", err
	}

	resp, err := s.objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("failed to download %q: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTextBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", name, err)
	}
	return string(data), nil
}

func (s *CloudStore) locator(name string, token string) string {
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		strings.TrimRight(s.downloadBase.String(), "/"),
		url.PathEscape(s.bucket),
		url.PathEscape(name),
		url.QueryEscape(token),
	)
}

func (s *CloudStore) objectName(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid locator: %w", err)
	}
	if u.Scheme != s.downloadBase.Scheme || u.Host != s.downloadBase.Host {
		return "", ErrForeignLocator
	}
	prefix := strings.TrimRight(s.downloadBase.Path, "/") + "/v0/b/" + s.bucket + "/o/"
	name, ok := strings.CutPrefix(u.Path, prefix)
	if !ok || name == "" {
		return "", ErrForeignLocator
	}
	return name, nil
}
