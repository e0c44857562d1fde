package mimetypes

import "mime"

type MIME string

const (
	Unknown   MIME = "unknown"
	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
)

// Loadable lists the image types a board can be replaced with.
var Loadable = []MIME{ImagePNG}

// Matches compares a detected media type, parameters ignored, with the one expected.
func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// IsLoadable reports whether a detected media type can be sent as a board image.
func IsLoadable(detected string) bool {
	for _, m := range Loadable {
		if _, ok := Matches(detected, m); ok {
			return true
		}
	}
	return false
}
