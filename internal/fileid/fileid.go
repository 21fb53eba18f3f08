// Package fileid derives stable document ids for files picked up from disk, so that
// reprocessing a file replaces its previous record instead of adding a new one.
package fileid

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const scheme = "file://"

// namespace scopes the name-based ids to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://hyperjump.tech/kakushi/files"))

// URI returns the file:// URI of path. The path is cleaned and uses forward slashes.
func URI(path string) string {
	return scheme + filepath.ToSlash(filepath.Clean(path))
}

// ForPath returns the document id for path, a version 5 UUID over its URI.
// Callers pass absolute paths; equal cleaned paths always give the same id.
func ForPath(path string) string {
	return uuid.NewSHA1(namespace, []byte(URI(path))).String()
}

// ForURI returns the document id for a file:// URI, or "" when uri is not one.
func ForURI(uri string) string {
	p, ok := Path(uri)
	if !ok {
		return ""
	}
	return ForPath(p)
}

// Path returns the local path of a file:// URI.
func Path(uri string) (string, bool) {
	if !strings.HasPrefix(uri, scheme) {
		return "", false
	}
	p := strings.TrimPrefix(uri, scheme)
	if p == "" {
		return "", false
	}
	return filepath.FromSlash(p), true
}
