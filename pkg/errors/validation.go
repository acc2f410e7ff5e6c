package errors

import (
	"strings"
	"unicode"
)

// maxKeyLength bounds entry and column names stored in a container.
const maxKeyLength = 256

// ValidateKey validates a grouping key or table column name before it is
// written as a container entry name.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No "/" (it separates path segments inside a container)
//   - Maximum length of 256 characters
func ValidateKey(name string) error {
	if name == "" {
		return New(ErrCodeInvalidKey, "key cannot be empty")
	}

	if len(name) > maxKeyLength {
		return New(ErrCodeInvalidKey, "key too long (max %d characters)", maxKeyLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidKey, "key %q contains invalid control characters", name)
		}
	}

	if strings.Contains(name, "/") {
		return New(ErrCodeInvalidKey, "key %q contains path separator", name)
	}

	return nil
}

// ValidatePath validates a container file path supplied by a user.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
//   - Must not name a directory (no trailing separator)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidPath, "path %q names a directory", path)
	}

	return nil
}
