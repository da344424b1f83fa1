package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyFrame is returned when a frame payload carries no image bytes.
var ErrEmptyFrame = errors.New("empty frame payload")

// Frame is a single captured video frame attached to a pose event.
type Frame struct {
	Data       []byte
	MIMEType   string
	CapturedAt time.Time
}

// DecodeFrame parses a base64 image payload. A data URL prefix such as
// "data:image/jpeg;base64," is accepted and its MIME type is kept.
func DecodeFrame(payload string, capturedAt time.Time) (Frame, error) {
	payload = strings.TrimSpace(payload)
	mimeType := "image/jpeg"

	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return Frame{}, fmt.Errorf("decode frame: malformed data url")
		}
		header = strings.TrimPrefix(header, "data:")
		if mt, _, found := strings.Cut(header, ";"); found && mt != "" {
			mimeType = mt
		}
		payload = body
	}

	if payload == "" {
		return Frame{}, ErrEmptyFrame
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	return Frame{Data: data, MIMEType: mimeType, CapturedAt: capturedAt}, nil
}

// Base64 returns the frame bytes in standard base64 encoding.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}
