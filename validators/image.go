package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrImageTooLarge        = errors.New("image too large")
	ErrImageNameTooLong     = errors.New("file name is too long")
	ErrImageTypeUnsupported = errors.New("not an image, please upload only images")
	ErrNoImage              = errors.New("profile image is required")
)

const maxImageNameSize = 255

// ImageValidator checks the uploaded profile image: declared header
// first because it's cheap, then the actual bytes because headers are
// trivial to spoof.
func ImageValidator(fh *multipart.FileHeader, maxSize int64) (int, multipart.File, error) {
	if fh == nil {
		return http.StatusBadRequest, nil, ErrNoImage
	}

	ct := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return http.StatusBadRequest, nil, ErrImageTypeUnsupported
	}

	if len(fh.Filename) > maxImageNameSize {
		return http.StatusBadRequest, nil, ErrImageNameTooLong
	}

	if fh.Size > maxSize {
		return http.StatusRequestEntityTooLarge, nil, ErrImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return http.StatusInternalServerError, nil, err
	}

	if !strings.HasPrefix(mime.String(), "image/") {
		f.Close()
		return http.StatusBadRequest, nil, ErrImageTypeUnsupported
	}

	f.Seek(0, 0)

	return 0, f, nil
}
