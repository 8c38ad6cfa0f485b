package share

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildLink renders the shareable deep link for a folder. The folder id is
// path-escaped as one segment, since backend ids may themselves contain
// slashes.
func BuildLink(base, folderID string) string {
	return strings.TrimSuffix(base, "/") + "/folder/" + url.PathEscape(folderID)
}

// ParseFolderID extracts the folder id from a deep link. Both the current
// path form (/folder/<id>) and the legacy query form (?folderId=<id>) are
// accepted.
func ParseFolderID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid share link %q: %w", rawURL, err)
	}

	if id := u.Query().Get("folderId"); id != "" {
		return id, nil
	}

	// Use the escaped form so ids containing slashes survive as one segment
	escaped := u.EscapedPath()
	if idx := strings.Index(escaped, "/folder/"); idx >= 0 {
		segment := escaped[idx+len("/folder/"):]
		if segment != "" {
			id, err := url.PathUnescape(segment)
			if err != nil {
				return "", fmt.Errorf("invalid share link %q: %w", rawURL, err)
			}
			return id, nil
		}
	}

	return "", fmt.Errorf("share link %q carries no folder id", rawURL)
}
