package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"transcoding_service/internal/transcoding/domain"
)

// DeriveOutputName maps a source URL to its output file name:
// basename of the URL path, existing extension stripped, percent-decoded, plus ext.
//
// Same URL always yields the same name and two URLs whose decoded basenames
// collide share one slot. The output name is the idempotency key.
func DeriveOutputName(sourceURL, ext string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", &domain.InputError{Message: "invalid url", Err: err}
	}

	base := path.Base(u.EscapedPath())
	if base == "." || base == "/" || base == "" {
		return "", &domain.InputError{Message: fmt.Sprintf("url %q has no file name", sourceURL)}
	}
	base = strings.TrimSuffix(base, path.Ext(base))

	decoded, err := url.PathUnescape(base)
	if err != nil {
		// 不合法的 escape 保留原字串
		decoded = base
	}
	if decoded == "" || decoded == "." || decoded == ".." || strings.ContainsAny(decoded, `/\`) || strings.ContainsRune(decoded, 0) {
		return "", &domain.InputError{Message: fmt.Sprintf("url %q does not map to a valid file name", sourceURL)}
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return decoded + ext, nil
}

// sourceExt extension of the URL path, used to keep the staging file recognisable
func sourceExt(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}
