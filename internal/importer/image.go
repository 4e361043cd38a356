package importer

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// FileImageLoader reads images from a directory and returns them base64
// encoded. References without an extension are tried with each supported
// extension in turn.
type FileImageLoader struct {
	Dir string
}

func (l FileImageLoader) Load(ref string) (string, bool) {
	path, ok := l.resolve(ref)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("importer: read image", "path", path, "error", err)
		return "", false
	}
	return base64.StdEncoding.EncodeToString(data), true
}

func (l FileImageLoader) resolve(ref string) (string, bool) {
	ref = filepath.Clean(strings.TrimSpace(ref))
	if ref == "." || filepath.IsAbs(ref) || strings.HasPrefix(ref, "..") {
		slog.Warn("importer: image reference outside image dir", "ref", ref)
		return "", false
	}

	ext := filepath.Ext(ref)
	if ext == "" {
		for _, e := range imageExtensions {
			p := filepath.Join(l.Dir, ref+e)
			if isFile(p) {
				return p, true
			}
		}
		slog.Warn("importer: no image found with supported extensions", "ref", ref)
		return "", false
	}

	if !slices.Contains(imageExtensions, strings.ToLower(ext)) {
		slog.Warn("importer: unsupported image format", "ref", ref, "supported", imageExtensions)
		return "", false
	}
	p := filepath.Join(l.Dir, ref)
	if !isFile(p) {
		slog.Warn("importer: image not found", "path", p)
		return "", false
	}
	return p, true
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
