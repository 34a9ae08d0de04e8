package scopeindex

import (
	"testing"

	"github.com/standardbeagle/r-lsp-core/internal/rparser"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

func extract(t *testing.T, src string) types.ScopeArtifacts {
	t.Helper()
	content := []byte(src)
	tree := rparser.Parse(content)
	if tree == nil {
		t.Fatal("rparser.Parse returned nil tree")
	}
	defer tree.Close()
	return Extract(content, tree, types.NewCrossFileMetadata())
}

func TestExtractTopLevelAssignment(t *testing.T) {
	art := extract(t, "x <- 1\n")
	def, ok := art.ExportedInterface["x"]
	if !ok {
		t.Fatal("expected x in exported interface")
	}
	if def.Kind != types.SymbolAssignment {
		t.Errorf("Kind = %v, want SymbolAssignment", def.Kind)
	}
}

func TestExtractEqualsAssignment(t *testing.T) {
	art := extract(t, "y = 2\n")
	if _, ok := art.ExportedInterface["y"]; !ok {
		t.Fatal("expected y in exported interface")
	}
}

func TestExtractSuperAssignment(t *testing.T) {
	art := extract(t, "z <<- 3\n")
	if _, ok := art.ExportedInterface["z"]; !ok {
		t.Fatal("expected z in exported interface")
	}
}

func TestExtractS3MethodNaming(t *testing.T) {
	art := extract(t, "print.myclass <- function(x) x\n")
	def, ok := art.ExportedInterface["print.myclass"]
	if !ok {
		t.Fatal("expected print.myclass in exported interface")
	}
	if def.Kind != types.SymbolS3Method {
		t.Errorf("Kind = %v, want SymbolS3Method", def.Kind)
	}
}

func TestExtractS4SetMethod(t *testing.T) {
	art := extract(t, `setMethod("summary", "Foo", function(object) object)`+"\n")
	def, ok := art.ExportedInterface["summary"]
	if !ok {
		t.Fatal("expected summary in exported interface")
	}
	if def.Kind != types.SymbolS4Method {
		t.Errorf("Kind = %v, want SymbolS4Method", def.Kind)
	}
}

func TestExtractLocalBindingInFunction(t *testing.T) {
	art := extract(t, "f <- function() {\n  local_var <- 1\n  local_var\n}\n")
	found := false
	for _, b := range art.LocalBindings {
		if b.Symbol == "local_var" && b.Scope == types.ScopeFunction {
			found = true
		}
	}
	if !found {
		t.Errorf("expected local_var binding with function scope, got %+v", art.LocalBindings)
	}
}

func TestExtractLocalBindingInLoop(t *testing.T) {
	art := extract(t, "for (i in 1:10) {\n  acc <- acc + i\n}\n")
	found := false
	for _, b := range art.LocalBindings {
		if b.Symbol == "acc" && b.Scope == types.ScopeLoop {
			found = true
		}
	}
	if !found {
		t.Errorf("expected acc binding with loop scope, got %+v", art.LocalBindings)
	}
}

func TestExtractReferencedSymbols(t *testing.T) {
	art := extract(t, "x <- 1\ny <- x + helper(x)\n")
	for _, name := range []string{"x", "y", "helper"} {
		if _, ok := art.ReferencedSymbols[name]; !ok {
			t.Errorf("expected %q in referenced symbols, got %v", name, art.ReferencedSymbols)
		}
	}
}

func TestExtractAnnotationDeclarations(t *testing.T) {
	src := "# @lsp-var my_const\n# @lsp-func my_helper\nx <- 1\n"
	art := extract(t, src)
	if def, ok := art.ExportedInterface["my_const"]; !ok || def.Kind != types.SymbolAnnotation {
		t.Errorf("expected my_const annotation declaration, got %+v ok=%v", def, ok)
	}
	if def, ok := art.ExportedInterface["my_helper"]; !ok || def.Kind != types.SymbolAnnotation {
		t.Errorf("expected my_helper annotation declaration, got %+v ok=%v", def, ok)
	}
}

func TestExtractNilTreeStillScansAnnotations(t *testing.T) {
	art := Extract([]byte("# @lsp-var standalone\n"), nil, types.NewCrossFileMetadata())
	if _, ok := art.ExportedInterface["standalone"]; !ok {
		t.Error("expected annotation declarations to be scanned even without a tree")
	}
}

func TestExtractDeterministic(t *testing.T) {
	src := "a <- 1\nb <- function(x) {\n  c <- x + a\n  c\n}\n"
	content := []byte(src)
	tree1 := rparser.Parse(content)
	tree2 := rparser.Parse(content)
	defer tree1.Close()
	defer tree2.Close()

	art1 := Extract(content, tree1, types.NewCrossFileMetadata())
	art2 := Extract(content, tree2, types.NewCrossFileMetadata())

	if len(art1.ExportedInterface) != len(art2.ExportedInterface) {
		t.Fatalf("non-deterministic exported interface sizes: %d vs %d", len(art1.ExportedInterface), len(art2.ExportedInterface))
	}
	if len(art1.LocalBindings) != len(art2.LocalBindings) {
		t.Fatalf("non-deterministic local binding counts: %d vs %d", len(art1.LocalBindings), len(art2.LocalBindings))
	}
}
