package executor

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

// ObjectKey 产物对象路径：<prefix>/<job>/<segment>/<file>
func ObjectKey(prefix, jobUUID, segment, filename string) string {
	if prefix == "" {
		prefix = "jobs"
	}
	return path.Join(strings.Trim(prefix, "/"), jobUUID, segment, SanitizeFilename(filename))
}

// SanitizeFilename 去掉路径与不安全字符，保留扩展名
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(unsafeName.ReplaceAllString(name, "_"))
	if name == "" || name == "." || name == "/" {
		return "output"
	}
	return name
}
