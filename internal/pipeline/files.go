package pipeline

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kakushi/internal/fileid"
	"github.com/hyperjump/kakushi/internal/models"
)

// DocumentFromFile reads the file at path into a document input. The id is derived from
// the absolute path so reprocessing a file replaces its record. Content that is not
// valid UTF-8 is base64-encoded.
func DocumentFromFile(path string) (models.DocumentInput, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.DocumentInput{}, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return models.DocumentInput{}, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return models.DocumentInput{}, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return models.DocumentInput{}, fmt.Errorf("read file: %w", err)
	}
	src := models.Source{
		FileName: filepath.Base(absPath),
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(absPath)), "."),
		FS:       &models.SourceFS{URI: fileid.URI(absPath)},
	}
	if utf8.Valid(content) {
		src.Content = string(content)
	} else {
		src.Content = base64.StdEncoding.EncodeToString(content)
		src.Encoding = models.EncodingBase64
	}
	return models.DocumentInput{ID: fileid.ForPath(absPath), Source: src}, nil
}

// CollectDirectory walks dir recursively and reads every regular file whose extension
// is in allowedExts (all files when empty), in lexical order.
func CollectDirectory(dir string, allowedExts []string) ([]models.DocumentInput, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var docs []models.DocumentInput
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so we only read regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		doc, err := DocumentFromFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// extensionAllowed reports whether ext (with or without a leading dot) is in allowed.
func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), ".")) == extNorm {
			return true
		}
	}
	return false
}
