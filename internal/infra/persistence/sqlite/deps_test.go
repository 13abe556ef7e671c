package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

func TestOnlyDependsOnDomainAndSnapshotTable(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	allowed := map[string]bool{
		"rentcore/pkg/domain":                            true,
		"rentcore/internal/infra/persistence/snapshotdb": true,
	}
	for _, imp := range pkg.Imports {
		if strings.HasPrefix(imp, "rentcore/") && !allowed[imp] {
			t.Errorf("sqlite must not import %s", imp)
		}
	}
}
