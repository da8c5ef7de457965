package product

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
)

const defaultMaxImageBytes = 5 << 20

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ImageUpload is a product picture sent by the owner.
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

type preparedImage struct {
	object      string
	contentType string
	data        []byte
}

// ImageObjectName returns the blob path for an upload:
// {tenantID}/images/{unixMillis}_{filename}.
func ImageObjectName(tenantID uuid.UUID, at time.Time, filename string) string {
	return fmt.Sprintf("%s/images/%d_%s", tenantID, at.UnixMilli(), SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	clean := strings.Trim(unsafeFilenameChars.ReplaceAllString(base, "_"), "._")
	if clean == "" {
		return "image"
	}
	return clean
}

func prepareImage(tenantID uuid.UUID, at time.Time, upload *ImageUpload, maxBytes int64) (*preparedImage, error) {
	if upload == nil || upload.Body == nil {
		return nil, nil
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image is empty")
	}
	if int64(len(data)) > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is not an image")
	}
	return &preparedImage{
		object:      ImageObjectName(tenantID, at, upload.Filename),
		contentType: detected.String(),
		data:        data,
	}, nil
}

func (p *preparedImage) reader() io.Reader {
	return bytes.NewReader(p.data)
}
