package domain

import (
	"go/build"
	"strings"
	"testing"
)

// The domain package sits below every store, the engine and the adapters.
// It may import the standard library only.
func TestDomainImportsStandardLibraryOnly(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		first, _, _ := strings.Cut(imp, "/")
		if strings.HasPrefix(imp, "rentcore/") || strings.Contains(first, ".") {
			t.Errorf("domain imports %s", imp)
		}
	}
}
