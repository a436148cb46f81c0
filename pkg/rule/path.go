package rule

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeDocPath converts a document path to the form used for path
// filtering: slash separated, rooted at "/", cleaned, and in Unicode NFC.
func NormalizeDocPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return norm.NFC.String(path.Clean(p))
}
