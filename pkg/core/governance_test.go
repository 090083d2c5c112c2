//go:build governance

package core_test

import (
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/leapconn"

// TestGovernance_CoreCohesion verifies that exported types in pkg/core are
// shared by more than one package. A type with a single consumer belongs to
// that consumer.
func TestGovernance_CoreCohesion(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	require.NoError(t, err)

	coreDefs := make(map[types.Object]string)
	var corePkg *packages.Package
	for _, p := range pkgs {
		if p.PkgPath != modulePath+"/pkg/core" {
			continue
		}
		corePkg = p
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			obj := scope.Lookup(name)
			if _, isType := obj.(*types.TypeName); isType && obj.Exported() {
				coreDefs[obj] = name
			}
		}
		break
	}
	require.NotNil(t, corePkg, "pkg/core not found")

	usage := make(map[string]map[string]bool)
	for _, name := range coreDefs {
		usage[name] = make(map[string]bool)
	}
	for _, p := range pkgs {
		if p.PkgPath == corePkg.PkgPath || p.TypesInfo == nil {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if name, ok := coreDefs[obj]; ok {
				usage[name][strings.TrimPrefix(p.PkgPath, modulePath+"/")] = true
			}
		}
	}

	for name, importers := range usage {
		switch len(importers) {
		case 0:
			t.Logf("unused core type %s", name)
		case 1:
			for user := range importers {
				t.Errorf("core.%s is used only by %s; move it there", name, user)
			}
		}
	}
}

// TestGovernance_BackendIsolation checks the dependency direction between
// the contract and its implementations: pkg/adapter never imports a backend,
// and backends never import each other.
func TestGovernance_BackendIsolation(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/...")
	require.NoError(t, err)

	backends := modulePath + "/pkg/adapters/"
	for _, p := range pkgs {
		switch {
		case p.PkgPath == modulePath+"/pkg/adapter":
			for imp := range p.Imports {
				if strings.HasPrefix(imp, backends) {
					t.Errorf("pkg/adapter imports backend %s", imp)
				}
			}
		case strings.HasPrefix(p.PkgPath, backends) && p.PkgPath != backends+"all":
			for imp := range p.Imports {
				if strings.HasPrefix(imp, backends) {
					t.Errorf("%s imports another backend %s", p.PkgPath, imp)
				}
			}
		}
	}
}
