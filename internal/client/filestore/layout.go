package filestore

import (
	"strings"
	"unicode"
)

// Folder names under a library root.
const (
	PDFFolder         = "pdfs"
	AnnotationsFolder = "annotations"
)

const maxNameLen = 120

// PDFName is the remote name of a PDF blob: the first 8 hex digits of its
// checksum, an underscore, and the sanitized original filename.
func PDFName(checksum, filename string) string {
	prefix := checksum
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return prefix + "_" + Sanitize(filename)
}

// SidecarName is the remote name of the annotation sidecar of an attachment.
func SidecarName(attachmentID string) string {
	return attachmentID + ".json"
}

// Sanitize maps a user supplied filename onto a portable object name:
// letters, digits, '.', '-' and '_' are kept, everything else becomes '_'.
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	out := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	out = strings.Trim(out, ".")
	if len(out) > maxNameLen {
		out = out[len(out)-maxNameLen:]
	}
	if out == "" {
		return "file"
	}
	return out
}
