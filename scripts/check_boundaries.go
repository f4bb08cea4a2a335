package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	programDir  = "contexts/ledger-voting/poll-program"
	programPath = "pollchain/" + programDir
)

// layerImports lists what each poll program layer may import besides the
// standard library. Layers missing from the table are unrestricted apart
// from the infrastructure rule.
var layerImports = map[string][]string{
	"domain":      {programPath + "/domain", "github.com/google/uuid"},
	"ports":       {programPath + "/domain"},
	"application": {programPath + "/application", programPath + "/domain", programPath + "/ports"},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	violations := collectViolations(programDir)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		return violations[i].Line < violations[j].Line
	})
	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		layer := strings.Split(filepath.ToSlash(rel), "/")[0]
		violations = append(violations, checkFile(filepath.ToSlash(path), layer)...)
		return nil
	})
	return violations
}

func checkFile(path string, layer string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: path, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	allowed, restricted := layerImports[layer]
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		v := violation{File: path, Line: fset.Position(imp.Pos()).Line, Import: importPath}
		switch {
		case strings.HasPrefix(importPath, "pollchain/internal/"):
			v.Rule = "program code must not import runtime infrastructure"
		case restricted && !isStdlib(importPath) && !hasAnyPrefix(importPath, allowed):
			v.Rule = layer + " import is outside its allowlist"
		default:
			continue
		}
		violations = append(violations, v)
	}
	return violations
}

func hasAnyPrefix(importPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if importPath == prefix || strings.HasPrefix(importPath, prefix+"/") {
			return true
		}
	}
	return false
}

// isStdlib treats any import whose first element has no dot as standard library.
func isStdlib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return first != "pollchain" && !strings.Contains(first, ".")
}
