// Package frame decodes, checks and stores the camera frames the backend
// delivers as base64 data URLs.
package frame

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/campuswatch/internal/gateway"
)

var (
	// ErrInvalidDataURL is returned when a frame is not a base64 image.
	ErrInvalidDataURL = errors.New("invalid image data URL")
	// ErrEmptyImage is returned when image bytes decode to nothing.
	ErrEmptyImage = errors.New("decoded image is empty")
)

// Info describes a decoded image.
type Info struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	MIME     string `json:"mime"`
	Bytes    int    `json:"bytes"`
}

// DecodeDataURL extracts the image bytes and MIME type from a data URL.
// A bare base64 string is accepted and assumed to be JPEG.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", ErrInvalidDataURL
	}

	mime := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("%w: missing base64 payload", ErrInvalidDataURL)
		}
		mime = strings.TrimSuffix(header, ";base64")
		if !strings.HasPrefix(mime, "image/") {
			return nil, "", fmt.Errorf("%w: unexpected type %q", ErrInvalidDataURL, mime)
		}
		payload = data
	}

	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(b) == 0 {
		return nil, "", ErrEmptyImage
	}
	return b, mime, nil
}

// EncodeDataURL wraps JPEG bytes in a data URL.
func EncodeDataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

func decodeMat(b []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(b, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return mat, ErrEmptyImage
	}
	return mat, nil
}

// Inspect decodes a data URL and reports the image dimensions.
func Inspect(dataURL string) (Info, error) {
	b, mime, err := DecodeDataURL(dataURL)
	if err != nil {
		return Info{}, err
	}

	mat, err := decodeMat(b)
	if err != nil {
		return Info{}, err
	}
	defer mat.Close()

	return Info{
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		MIME:     mime,
		Bytes:    len(b),
	}, nil
}

// Check rejects frames that do not decode to an image. It is used to keep
// corrupt frames out of the live view.
func Check(f gateway.Frame) error {
	_, err := Inspect(f.Data)
	return err
}

// JPEG returns the frame as JPEG bytes, re-encoding other image types.
func JPEG(f gateway.Frame) ([]byte, error) {
	b, mime, err := DecodeDataURL(f.Data)
	if err != nil {
		return nil, err
	}
	if mime == "image/jpeg" {
		return b, nil
	}

	mat, err := decodeMat(b)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	return encodeJPEG(mat)
}

func encodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Save writes the frame to path. The image format follows the file
// extension.
func Save(f gateway.Frame, path string) error {
	b, _, err := DecodeDataURL(f.Data)
	if err != nil {
		return err
	}

	mat, err := decodeMat(b)
	if err != nil {
		return err
	}
	defer mat.Close()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write image to %s", path)
	}
	return nil
}

// LoadImage reads an image file and returns it as a JPEG data URL, the
// form the backend expects for face registration.
func LoadImage(path string) (string, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return "", fmt.Errorf("failed to read image %s: %w", path, ErrEmptyImage)
	}
	defer mat.Close()

	b, err := encodeJPEG(mat)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(b), nil
}
