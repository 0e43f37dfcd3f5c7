// Package imageload fetches and decodes the photo shown for a rotation step.
package imageload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gabriel-vasile/mimetype"

	errs "phototimer/pkg/errors"
	"phototimer/pkg/fetch"
	"phototimer/pkg/logger"
)

// SupportedTypes are the MIME types Decode accepts, detected from content
var SupportedTypes = mapset.NewSet(
	"image/jpeg",
	"image/png",
	"image/gif",
)

// SupportedExt are file extensions that usually carry a supported type
var SupportedExt = mapset.NewSet(
	".jpeg", ".jpg",
	".png",
	".gif",
)

// Loader resolves an image URL to decoded pixels and the format name
type Loader interface {
	Load(ctx context.Context, url string) (image.Image, string, error)
}

// HTTPLoader downloads images with a fetch.Client
type HTTPLoader struct {
	client   *fetch.Client
	maxBytes int64
	logger   logger.Logger
}

// New creates an HTTPLoader reading at most maxBytes per image
func New(client *fetch.Client, maxBytes int64, log logger.Logger) *HTTPLoader {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTTPLoader{client: client, maxBytes: maxBytes, logger: log}
}

// Load downloads and decodes url. Failures are *errors.ImageLoadError.
func (l *HTTPLoader) Load(ctx context.Context, url string) (image.Image, string, error) {
	resp, err := l.client.Get(ctx, url, l.maxBytes)
	if err != nil {
		reason := err.Error()
		classified := fetch.Classify(err)
		if classified != nil {
			reason = classified.Message
		}
		return nil, "", &errs.ImageLoadError{URL: url, Reason: reason, Err: classified}
	}

	img, format, decodeErr := Decode(resp.Body)
	if decodeErr != nil {
		l.logger.WarnWithFields("image decode failed", map[string]interface{}{
			"url":          url,
			"content_type": resp.ContentType,
			"bytes":        len(resp.Body),
			"error":        decodeErr.Error(),
		})
		return nil, "", &errs.ImageLoadError{URL: url, Reason: decodeErr.Message, Err: decodeErr}
	}

	l.logger.DebugWithFields("image loaded", map[string]interface{}{
		"url":    url,
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	})
	return img, format, nil
}

// Decode sniffs the content type of data and decodes supported images
func Decode(data []byte) (image.Image, string, *errs.Error) {
	detected := mimetype.Detect(data)
	if !SupportedTypes.Contains(detected.String()) {
		return nil, "", &errs.Error{
			Type:    errs.ErrorTypeDecode,
			Message: fmt.Sprintf("unsupported content type %s", detected.String()),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &errs.Error{
			Type:    errs.ErrorTypeDecode,
			Message: fmt.Sprintf("decode %s: %v", detected.String(), err),
		}
	}
	return img, format, nil
}

// HasSupportedExt reports whether the URL path ends in a supported extension.
// It is a display hint only; Load decides by content.
func HasSupportedExt(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return SupportedExt.Contains(strings.ToLower(path.Ext(p)))
}
