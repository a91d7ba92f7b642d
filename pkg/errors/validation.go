package errors

import (
	"strings"
	"unicode"
)

// maxPathLength bounds manifest keys and configured paths.
const maxPathLength = 1024

// ValidatePath validates a logical manifest path for safety.
// It prevents path traversal out of the build workspace.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 1024 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No ".." segments
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /): %q", path)
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes: %q", path)
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain traversal segments (..): %q", path)
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// ValidateVersion validates a composer release version used to build a
// download URL. Only characters that can appear in a release tag are allowed.
func ValidateVersion(version string) error {
	if version == "" {
		return New(ErrCodeConfig, "composer version cannot be empty")
	}
	for _, r := range version {
		ok := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '+'
		if !ok {
			return New(ErrCodeConfig, "invalid composer version: %q", version)
		}
	}
	return nil
}
