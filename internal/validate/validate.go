// Package validate checks upload metadata and numeric form fields before an
// idea is constructed. Nothing here touches storage.
package validate

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	MaxAudioBytes int64 = 10 << 20
	MaxBPM              = 500
)

var allowedMimeTypes = map[string]struct{}{
	"audio/mpeg":  {},
	"audio/wav":   {},
	"audio/wave":  {},
	"audio/ogg":   {},
	"audio/x-wav": {},
}

var allowedExtensions = map[string]struct{}{
	".mp3": {},
	".wav": {},
	".ogg": {},
}

// Error is a caller-correctable validation failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrFileTooLarge        = &Error{Code: "FILE_TOO_LARGE", Message: "audio file exceeds 10 MiB"}
	ErrUnsupportedFileType = &Error{Code: "UNSUPPORTED_FILE_TYPE", Message: "audio must be MP3, WAV or OGG"}
	ErrNotANumber          = &Error{Code: "NOT_A_NUMBER", Message: "bpm must be a whole number"}
	ErrNegative            = &Error{Code: "NEGATIVE", Message: "bpm cannot be negative"}
	ErrOutOfRange          = &Error{Code: "OUT_OF_RANGE", Message: "bpm must be between 0 and 500"}
)

// FileMetadata describes an uploaded file as reported by the client.
type FileMetadata struct {
	SizeBytes int64
	MimeType  string
	Filename  string
}

// AudioFile accepts a file when it fits the size limit and either its MIME
// type or its filename extension is a known audio format.
func AudioFile(meta FileMetadata) error {
	if meta.SizeBytes > MaxAudioBytes {
		return ErrFileTooLarge
	}
	if allowedMimeType(meta.MimeType) || allowedExtension(meta.Filename) {
		return nil
	}
	return ErrUnsupportedFileType
}

func allowedMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	_, ok := allowedMimeTypes[mimeType]
	return ok
}

func allowedExtension(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// BPM parses an optional tempo field. Blank input yields nil.
func BPM(raw string) (*int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			if strings.HasPrefix(trimmed, "-") {
				return nil, ErrNegative
			}
			return nil, ErrOutOfRange
		}
		return nil, ErrNotANumber
	}
	if value < 0 {
		return nil, ErrNegative
	}
	if value > MaxBPM {
		return nil, ErrOutOfRange
	}
	return &value, nil
}
