// Package mime resolves a node's MIME type from its name. The chunk
// engine does not call it: stored files keep an empty Node.MimeType and
// FetchResult carries no content type. Detection is by extension only — the core never sniffs content, since
// that would mean decrypting a chunk just to name it.
package mime

import (
	"mime"
	"path"
	"strings"
	"sync"
)

const dirMimeType = "httpd/unix-directory"

var customMimes sync.Map

// overrides covers extensions the standard library's mime package leaves
// unmapped or maps inconsistently across platforms.
var overrides = map[string]string{
	"md":   "text/markdown",
	"yml":  "application/yaml",
	"yaml": "application/yaml",
	"go":   "text/x-go",
	"ts":   "application/typescript",
	"zip":  "application/zip",
	"tar":  "application/x-tar",
	"gz":   "application/gzip",
}

func init() {
	for ext, m := range overrides {
		customMimes.Store(ext, m)
	}
}

// Register adds or overrides the MIME type used for ext.
func Register(ext, mimeType string) {
	customMimes.Store(strings.TrimPrefix(ext, "."), mimeType)
}

// Detect returns the MIME type for fn. isDir short-circuits to the
// directory pseudo-type WebDAV clients expect.
func Detect(isDir bool, fn string) string {
	if isDir {
		return dirMimeType
	}

	ext := strings.TrimPrefix(path.Ext(fn), ".")
	if ext == "" {
		return "application/octet-stream"
	}

	if m, ok := customMimes.Load(ext); ok {
		return m.(string)
	}

	if m := mime.TypeByExtension("." + ext); m != "" {
		if i := strings.IndexByte(m, ';'); i >= 0 {
			m = m[:i]
		}
		customMimes.Store(ext, m)
		return m
	}

	return "application/octet-stream"
}
