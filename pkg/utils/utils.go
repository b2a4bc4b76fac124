package utils

import (
	"crypto/rand"
	"errors"
	"mime/multipart"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// frameNamePattern is the only filename shape the pipeline accepts: an
// integer timestamp in seconds followed by .jpg.
var frameNamePattern = regexp.MustCompile(`(?i)^\d+\.jpg$`)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateFrameFile(file *multipart.FileHeader) error
	ValidateCSVFile(file *multipart.FileHeader) error
}

type utils struct {
	maxFileSize int64
}

func New() IUtils {
	return &utils{
		maxFileSize: 5 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateFrameFile(file *multipart.FileHeader) error {
	if file == nil {
		return errors.New("no file uploaded")
	}

	if file.Size > u.maxFileSize {
		return errors.New("file size exceeds limit")
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return errors.New("uploaded file is not an image")
	}

	if !frameNamePattern.MatchString(file.Filename) {
		return errors.New("frame filename must be <seconds>.jpg")
	}

	return nil
}

func (u *utils) ValidateCSVFile(file *multipart.FileHeader) error {
	if file == nil {
		return errors.New("no file uploaded")
	}

	if file.Size > u.maxFileSize {
		return errors.New("file size exceeds limit")
	}

	name := strings.ToLower(file.Filename)
	if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".txt") {
		return errors.New("GPS log must be a .csv or .txt file")
	}

	return nil
}
