package client

import (
	"encoding/base64"
	"fmt"
	"os"

	"whiteboard/domain/event"
	"whiteboard/domain/mimetypes"

	"github.com/gabriel-vasile/mimetype"
)

// LoadImageFile reads an image from disk and wraps it into a load-image
// payload. Files that are not images, or that would not fit in one record,
// are refused before anything is sent.
func LoadImageFile(path string, maxRecordSize int) (event.LoadImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return event.LoadImage{}, fmt.Errorf("read image: %w", err)
	}
	mtype := mimetype.Detect(data)
	if !mimetypes.IsLoadable(mtype.String()) {
		return event.LoadImage{}, fmt.Errorf("%s is %s, expected image/png", path, mtype.String())
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) >= maxRecordSize {
		return event.LoadImage{}, fmt.Errorf("%s is too large to be sent (%d bytes encoded)", path, len(encoded))
	}
	return event.LoadImage{Image: encoded}, nil
}
