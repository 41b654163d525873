// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package indexer

import (
	"bytes"
	"path"
	"strings"
)

// sniffWindow is how much of a blob is inspected for null bytes.
const sniffWindow = 2048

// deniedExtensions are skipped without fetching content.
var deniedExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".ico": {}, ".bmp": {}, ".tiff": {}, ".svg": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".7z": {}, ".jar": {}, ".war": {},
	".mp4": {}, ".mov": {}, ".mp3": {}, ".wav": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".img": {},
}

// IsProbablyText reports whether a tree path is worth fetching. Paths
// without an extension are assumed to be text.
func IsProbablyText(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return true
	}
	_, denied := deniedExtensions[ext]
	return !denied
}

// IsBinary reports whether content has a null byte near its start.
func IsBinary(content []byte) bool {
	head := content
	if len(head) > sniffWindow {
		head = head[:sniffWindow]
	}
	return bytes.IndexByte(head, 0) >= 0
}
