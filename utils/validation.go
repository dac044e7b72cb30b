package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	civilIDPattern   = regexp.MustCompile(`^[0-9]{10}$`)
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	driveFolderLink  = regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`)
	driveIDParam     = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveRawFolderID = regexp.MustCompile(`^[a-zA-Z0-9_-]{10,}$`)
)

// NormalizeCivilID removes every whitespace rune, including the
// non-breaking spaces spreadsheets like to carry.
func NormalizeCivilID(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// IsValidCivilID accepts exactly ten ASCII digits.
func IsValidCivilID(civilID string) bool {
	return civilIDPattern.MatchString(civilID)
}

func ValidateCivilID(raw string) (string, error) {
	civilID := NormalizeCivilID(raw)
	if civilID == "" {
		return "", fmt.Errorf("civil ID is required")
	}
	if !IsValidCivilID(civilID) {
		return "", fmt.Errorf("civil ID %q must be exactly 10 digits", raw)
	}
	return civilID, nil
}

func ValidateFileSize(size, maxSize int64) error {
	if size > maxSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", size, maxSize)
	}
	return nil
}

func ValidateFileName(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if len(filename) > 255 {
		return fmt.Errorf("filename too long (max 255 characters)")
	}

	if !utf8.ValidString(filename) {
		return fmt.Errorf("filename contains invalid UTF-8 characters")
	}

	invalidChars := []string{"<", ">", ":", "\"", "|", "?", "*", "\x00"}
	for _, char := range invalidChars {
		if strings.Contains(filename, char) {
			return fmt.Errorf("filename contains invalid character: %s", char)
		}
	}
	return nil
}

func ValidateFileHeader(header *multipart.FileHeader, maxSize int64) error {
	if err := ValidateFileName(header.Filename); err != nil {
		return err
	}
	return ValidateFileSize(header.Size, maxSize)
}

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ExtractDriveFolderID accepts a Drive folder share link, an open?id= link
// or a bare folder ID.
func ExtractDriveFolderID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("drive folder link is empty")
	}
	if m := driveFolderLink.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if m := driveIDParam.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if driveRawFolderID.MatchString(input) {
		return input, nil
	}
	return "", fmt.Errorf("could not find a folder ID in %q", input)
}

// SafeJoin joins rel onto root and refuses results outside root.
func SafeJoin(root, rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	cleaned := filepath.Clean("/" + rel)
	if cleaned == "/" {
		return "", fmt.Errorf("empty path")
	}
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", fmt.Errorf("path %q escapes the upload directory", rel)
		}
	}
	full := filepath.Join(root, filepath.FromSlash(cleaned))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFull, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the upload directory", rel)
	}
	return full, nil
}
