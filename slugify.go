package blogflow

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// SlugPath is the slug of a Markdown file relative to its root directory.
type SlugPath struct {
	Slug         string
	FileTimePath string // the 2006-01-02 prefix of the file name, if any
	FileTime     *time.Time
}

// WithoutDate returns the slug with a leading file date (2006-01-02-) removed from its last part.
func (sp SlugPath) WithoutDate() string {
	if sp.FileTimePath == "" {
		return sp.Slug
	}

	lastSlash := strings.LastIndex(sp.Slug, "/")
	filePart := sp.Slug[lastSlash+1:]
	if !hasDatePrefix(filePart) {
		return sp.Slug
	}

	if lastSlash < 0 {
		return filePart[11:]
	}
	return sp.Slug[:lastSlash] + "/" + filePart[11:]
}

func hasDatePrefix(name string) bool {
	return len(name) > 11 && name[4] == '-' && name[7] == '-' && name[10] == '-'
}

// SlugifyPath slugifies the path of a seed Markdown file below rootPath. The extension and a trailing "/index" are
// dropped and every path part goes through slug.Make. A file name starting with a date (2006-01-02) sets FileTime;
// the slug keeps the date.
func SlugifyPath(rootPath, fullPath string) SlugPath {
	if fullPath == "" {
		return SlugPath{}
	}

	rel := filepath.ToSlash(strings.TrimPrefix(fullPath, rootPath))
	rel = strings.TrimPrefix(strings.TrimSpace(strings.Trim(rel, "/")), "/")
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	var sp SlugPath
	name := rel[strings.LastIndex(rel, "/")+1:]
	if hasDatePrefix(name) {
		if t, err := time.Parse(time.DateOnly, name[:10]); err == nil {
			sp.FileTime = &t
			sp.FileTimePath = name[:10]
		}
	}

	parts := strings.Split(strings.TrimSuffix(rel, "/index"), "/")
	for i, part := range parts {
		parts[i] = slug.Make(part)
	}
	sp.Slug = strings.Join(parts, "/")
	return sp
}
