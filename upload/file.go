// Package upload turns selected files into a catalog record: it proposes
// metadata, stores the bytes, renders a thumbnail for images and reports
// simulated progress while doing so.
package upload

import (
	"bytes"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cppla/myresource/models"
)

// File is one selected file. Open may be called more than once.
type File struct {
	Name string
	Size int64
	Type string
	Open func() (io.ReadCloser, error)
}

// BytesFile wraps in-memory content, mostly for tests and small CLI inputs.
func BytesFile(name, typ string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Type: typ,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

var (
	documentExts = map[string]bool{"doc": true, "docx": true, "ppt": true, "pptx": true, "xls": true, "xlsx": true}
	softwareExts = map[string]bool{"exe": true, "dmg": true, "msi": true, "apk": true, "zip": true, "rar": true}
)

// Ext returns the lower-cased extension without the dot, or "".
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// SuggestName strips the last extension: "report.final.pdf" -> "report.final".
// Unlike the web form, text after the first dot is kept ("a.tar.gz" -> "a.tar").
// Dotfiles keep their full name.
func SuggestName(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}

// SuggestCategory classifies by MIME prefix first, then by extension.
func SuggestCategory(mimeType, filename string) models.Category {
	mt := strings.ToLower(mimeType)
	ext := Ext(filename)
	switch {
	case strings.HasPrefix(mt, "video/"):
		return models.CategoryVideo
	case strings.HasPrefix(mt, "image/"):
		return models.CategoryImage
	case strings.HasPrefix(mt, "audio/"):
		return models.CategoryAudio
	case strings.Contains(mt, "pdf"), strings.Contains(mt, "document"), documentExts[ext]:
		return models.CategoryDocument
	case softwareExts[ext]:
		return models.CategorySoftware
	}
	return models.CategoryOther
}

// TypeOf is the record type: the MIME type when known, else the extension.
func TypeOf(mimeType, filename string) string {
	if mimeType != "" {
		return mimeType
	}
	return Ext(filename)
}

// ParseTags splits a comma separated list, trimming and dropping empties.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// DetectType keeps a specific declared type and otherwise sniffs head.
// Parameters such as charset are dropped.
func DetectType(declared string, head []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if len(head) == 0 {
		return ""
	}
	mt := mimetype.Detect(head).String()
	if base, _, err := mime.ParseMediaType(mt); err == nil {
		mt = base
	}
	if mt == "application/octet-stream" {
		return ""
	}
	return mt
}

// sniffHead is how many bytes DetectType needs from a file.
const sniffHead = 3072

// Sniff fills in f.Type from content when the declared type is missing or generic.
func Sniff(f File) File {
	if f.Open == nil {
		return f
	}
	if mt, _, err := mime.ParseMediaType(f.Type); err == nil && mt != "application/octet-stream" {
		f.Type = mt
		return f
	}
	rc, err := f.Open()
	if err != nil {
		return f
	}
	defer rc.Close()
	head, _ := io.ReadAll(io.LimitReader(rc, sniffHead))
	f.Type = DetectType(f.Type, head)
	return f
}
