package blob

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const (
	blobPkg   = "rentcore/internal/blob"
	driverPkg = "rentcore/internal/infra/blob"
)

func under(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// Drivers are reached through this package only, and drivers themselves see
// nothing of the module beyond the storage contract.
func TestDriverImportBoundaries(t *testing.T) {
	pkgs, err := packages.Load(&packages.Config{
		Mode:  packages.NeedName | packages.NeedImports,
		Tests: true,
	}, "rentcore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		path := strings.TrimSuffix(pkg.PkgPath, ".test")
		for imp := range pkg.Imports {
			switch {
			case under(path, driverPkg):
				if strings.HasPrefix(imp, "rentcore/") && !under(imp, driverPkg) && imp != blobPkg+"/core" {
					t.Errorf("driver %s imports %s", path, imp)
				}
			case under(path, blobPkg):
			default:
				if under(imp, driverPkg) {
					t.Errorf("%s imports driver %s; depend on blob.Store", path, imp)
				}
			}
		}
	}
}
