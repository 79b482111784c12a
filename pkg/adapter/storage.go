package adapter

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/interfaces"
	"github.com/m-mizutani/roam/pkg/model"
	"google.golang.org/api/option"
)

const (
	downloadTokenKey = "firebaseStorageDownloadTokens"
	downloadHost     = "firebasestorage.googleapis.com"
)

// Storage implements interfaces.BlobStore using Cloud Storage. Download URLs use the
// Firebase token form so they stay valid without signing.
type Storage struct {
	bucketName string
	client     *storage.Client
}

var _ interfaces.BlobStore = (*Storage)(nil)

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string, opts ...option.ClientOption) (*Storage, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.T(model.TagNetwork))
	}

	return &Storage{
		bucketName: bucketName,
		client:     client,
	}, nil
}

// Close releases the underlying client
func (s *Storage) Close() error {
	return s.client.Close()
}

// Put uploads r to key. A download token is attached so DownloadURL can build a durable URL.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	// cancelling the writer context discards a partial upload
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := s.client.Bucket(s.bucketName).Object(key)
	writer := obj.NewWriter(wctx)
	writer.ContentType = contentType
	writer.Metadata = map[string]string{
		downloadTokenKey: uuid.NewString(),
	}

	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		return goerr.Wrap(err, "failed to write object", goerr.V("key", key), goerr.T(model.TagNetwork))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload object", goerr.V("key", key), goerr.T(model.TagNetwork))
	}

	return nil
}

// DownloadURL resolves the durable download URL of an uploaded object
func (s *Storage) DownloadURL(ctx context.Context, key string) (string, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get object attributes", goerr.V("key", key), goerr.T(model.TagNetwork))
	}

	// the metadata may hold several comma separated tokens
	token, _, _ := strings.Cut(attrs.Metadata[downloadTokenKey], ",")
	if token == "" {
		token = uuid.NewString()
		metadata := map[string]string{downloadTokenKey: token}
		if _, err := obj.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: metadata}); err != nil {
			return "", goerr.Wrap(err, "failed to set download token", goerr.V("key", key), goerr.T(model.TagNetwork))
		}
	}

	return BuildDownloadURL(s.bucketName, key, token), nil
}

func (s *Storage) Get(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	bucket, key, err := ParseDownloadURL(downloadURL)
	if err != nil {
		return nil, err
	}

	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(err, "object not found", goerr.V("key", key), goerr.T(model.TagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key), goerr.T(model.TagNetwork))
	}

	return reader, nil
}

// Delete removes the object referenced by a download URL
func (s *Storage) Delete(ctx context.Context, downloadURL string) error {
	bucket, key, err := ParseDownloadURL(downloadURL)
	if err != nil {
		return err
	}

	if err := s.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return goerr.Wrap(err, "object not found", goerr.V("key", key), goerr.T(model.TagNotFound))
		}
		return goerr.Wrap(err, "failed to delete object", goerr.V("key", key), goerr.T(model.TagNetwork))
	}
	return nil
}

// BuildDownloadURL returns the token based download URL of bucket/key
func BuildDownloadURL(bucket, key, token string) string {
	u := url.URL{
		Scheme:  "https",
		Host:    downloadHost,
		Path:    "/v0/b/" + bucket + "/o/" + key,
		RawPath: "/v0/b/" + url.PathEscape(bucket) + "/o/" + url.PathEscape(key),
	}
	q := url.Values{}
	q.Set("alt", "media")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseDownloadURL extracts bucket and object key from a token download URL or a
// gs://bucket/key URL.
func ParseDownloadURL(downloadURL string) (bucket, key string, err error) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", "", goerr.Wrap(err, "invalid download URL", goerr.V("url", downloadURL), goerr.T(model.TagMalformed))
	}

	switch {
	case u.Scheme == "gs":
		bucket, key = u.Host, strings.TrimPrefix(u.Path, "/")

	case u.Scheme == "https" && u.Host == downloadHost:
		rest, ok := strings.CutPrefix(u.EscapedPath(), "/v0/b/")
		if !ok {
			break
		}
		rawBucket, rawKey, ok := strings.Cut(rest, "/o/")
		if !ok {
			break
		}
		if bucket, err = url.PathUnescape(rawBucket); err != nil {
			return "", "", goerr.Wrap(err, "invalid bucket in download URL", goerr.V("url", downloadURL), goerr.T(model.TagMalformed))
		}
		if key, err = url.PathUnescape(rawKey); err != nil {
			return "", "", goerr.Wrap(err, "invalid key in download URL", goerr.V("url", downloadURL), goerr.T(model.TagMalformed))
		}
	}

	if bucket == "" || key == "" {
		return "", "", goerr.New("unsupported download URL", goerr.V("url", downloadURL), goerr.T(model.TagMalformed))
	}
	return bucket, key, nil
}
