package rawzip

import (
	"strings"
	"unicode/utf8"
)

// RawPath is a central directory or local header file name exactly as
// stored in the archive: unvalidated bytes that may not even be valid
// UTF-8.
type RawPath []byte

// String returns the raw bytes reinterpreted as a string without any
// validation; callers that need a guaranteed-clean path should go through
// Normalize instead.
func (p RawPath) String() string { return string(p) }

// IsDir reports whether the raw name, as stored, ends with "/".
func (p RawPath) IsDir() bool { return len(p) > 0 && p[len(p)-1] == '/' }

// NormalizedPath is a RawPath that has been validated as UTF-8 and
// sanitized per APPNOTE §4.4.17.1: backslashes
// converted to forward slashes, any drive/device prefix stripped, and the
// segment list resolved so that "." segments vanish and ".." pops the
// previous retained segment without ever escaping the root.
type NormalizedPath string

// String returns the normalized path.
func (p NormalizedPath) String() string { return string(p) }

// IsDir reports whether the normalized path denotes a directory, i.e. the
// raw input ended in "/".
func (p NormalizedPath) IsDir() bool { return strings.HasSuffix(string(p), "/") }

// Normalize validates raw as UTF-8 and applies the path-normalization
// rules of APPNOTE §4.4.17:
//
//  1. '\' is treated as '/'.
//  2. Any drive/device prefix (the portion up to and including the last
//     ':') is stripped.
//  3. The path is split on '/'; empty and "." segments are dropped; ".."
//     pops the last retained segment, never escaping the root.
//
// When the input needs no rewriting (no backslashes, no drive prefix, no
// "." or ".." segments, no leading slash, no doubled slash), Normalize
// returns the input unchanged, skipping the split-and-join rewrite.
func Normalize(raw RawPath) (NormalizedPath, error) {
	s := string(raw)
	if i := firstInvalidUTF8(s); i >= 0 {
		return "", errInvalidUTF8(i)
	}

	isDir := strings.HasSuffix(s, "/")

	if pathAlreadyNormal(s) {
		return NormalizedPath(s), nil
	}

	s = strings.ReplaceAll(s, "\\", "/")

	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}

	segments := strings.Split(s, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	joined := strings.Join(out, "/")
	if isDir && joined != "" {
		joined += "/"
	}
	return NormalizedPath(joined), nil
}

// pathAlreadyNormal reports whether s needs no rewriting at all: no
// backslash, no ':', no doubled slash, no leading slash, and no "." or
// ".." segment.
func pathAlreadyNormal(s string) bool {
	if s == "" {
		return true
	}
	if s[0] == '/' || strings.ContainsAny(s, "\\:") || strings.Contains(s, "//") {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// firstInvalidUTF8 returns the byte offset of the first invalid UTF-8
// sequence in s, or -1 if s is valid UTF-8.
func firstInvalidUTF8(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// requiresUTF8EFS reports whether name contains any byte outside the
// CP-437-safe range [0x20, 0x7D] \ {0x5C}, the writer's policy for
// deciding when to set the UTF-8 EFS flag bit (bit 11) —
// matching archive/zip and zipserve's detectUTF8 "require" rule, which
// additionally forbids 0x5C and 0x7E because EUC-KR/Shift-JIS remap them.
func requiresUTF8EFS(name string) bool {
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			return true
		}
	}
	return false
}
