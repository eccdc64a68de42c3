// Package testdata builds camera frame fixtures for tests.
package testdata

import (
	"encoding/base64"
	"fmt"

	"gocv.io/x/gocv"
)

// SolidJPEG encodes a width x height image of one BGR colour as JPEG.
func SolidJPEG(width, height int, b, g, r float64) ([]byte, error) {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()
	mat.SetTo(gocv.NewScalar(b, g, r, 0))

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// FrameDataURL returns a grey test frame as the backend sends it.
func FrameDataURL(width, height int) (string, error) {
	jpeg, err := SolidJPEG(width, height, 128, 128, 128)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg), nil
}

// MustFrameDataURL is FrameDataURL for test setup that cannot fail.
func MustFrameDataURL(width, height int) string {
	s, err := FrameDataURL(width, height)
	if err != nil {
		panic(err)
	}
	return s
}
