package memory

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
)

// UploadPhoto re-encodes the image as JPEG, stores it under the memory's photo key and
// returns its durable download URL. The URL is empty whenever an error is returned.
func (u *UseCase) UploadPhoto(ctx context.Context, photo []byte, id model.MemoryID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	if u.blob == nil {
		return "", goerr.New("blob store is not configured", goerr.V("id", id))
	}

	img, format, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode photo", goerr.V("id", id), goerr.V("size", len(photo)), goerr.T(model.TagEncode))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: u.jpegQuality}); err != nil {
		return "", goerr.Wrap(err, "failed to encode photo", goerr.V("id", id), goerr.T(model.TagEncode))
	}

	key := model.PhotoKey(id)
	if err := u.blob.Put(ctx, key, &buf, "image/jpeg"); err != nil {
		return "", err
	}

	downloadURL, err := u.blob.DownloadURL(ctx, key)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(downloadURL)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return "", goerr.New("blob store returned an invalid download URL",
			goerr.V("url", downloadURL), goerr.V("key", key), goerr.T(model.TagMalformed))
	}

	logging.From(ctx).Debug("photo uploaded", "id", id, "source_format", format, "key", key)
	return downloadURL, nil
}
