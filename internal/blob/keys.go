package blob

import (
	"path"
	"strings"

	"rentcore/pkg/domain"
)

const documentPrefix = "documents"

// DocumentKey returns the object key for a document binary:
// documents/<owner-kind>/<owner-id>/<doc-id>/<file>. Ambiguous owners are
// stored under documents/unassigned/<doc-id>/<file>.
func DocumentKey(owner domain.DocumentOwner, docID, fileName string) string {
	name := sanitizeFileName(fileName)
	if owner.Ambiguous() || owner.ID == "" {
		return path.Join(documentPrefix, "unassigned", segment(docID), name)
	}
	return path.Join(documentPrefix, string(owner.Kind), segment(owner.ID), segment(docID), name)
}

// OwnerPrefix returns the key prefix holding every binary attached to owner.
func OwnerPrefix(owner domain.DocumentOwner) string {
	if owner.Ambiguous() || owner.ID == "" {
		return path.Join(documentPrefix, "unassigned") + "/"
	}
	return path.Join(documentPrefix, string(owner.Kind), segment(owner.ID)) + "/"
}

func segment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" || name == ".." {
		return "file"
	}
	return strings.ReplaceAll(name, " ", "_")
}
