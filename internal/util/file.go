package util

import (
	"mime"
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateFileMetadata checks the declared name, content type and size of an
// upload. Content itself is never inspected here.
func ValidateFileMetadata(fileName, contentType string, size, maxBytes int64) error {
	name := strings.TrimSpace(fileName)
	if name == "" {
		return ErrInvalidFileMetadata.With("file name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ErrInvalidFileMetadata.With("file name %q must not contain a path", fileName)
	}
	if filepath.Ext(name) == "" {
		return ErrInvalidFileMetadata.With("file name %q has no extension", fileName)
	}
	if contentType == "" {
		return ErrInvalidFileMetadata.With("content type is required")
	}
	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		return ErrInvalidFileMetadata.With("content type %q is malformed", contentType)
	}
	if size < 0 {
		return ErrInvalidFileMetadata.With("size must not be negative")
	}
	if maxBytes > 0 && size > maxBytes {
		return ErrInvalidFileMetadata.With("file size %d exceeds limit %d", size, maxBytes)
	}
	return nil
}

// ValidateSubmissionURL accepts absolute http(s) URLs only.
func ValidateSubmissionURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ErrInvalidFileMetadata.With("%q is not an absolute URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidFileMetadata.With("URL scheme %q not allowed", u.Scheme)
	}
	return nil
}
