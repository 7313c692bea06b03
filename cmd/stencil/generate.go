package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"

	"github.com/stencilkit/stencil"
	"github.com/stencilkit/stencil/input"
)

var generateCmd = &cobra.Command{
	Use:   "generate [paths...]",
	Short: "Generate rendering code for annotated types",
	Long: `Generate scans Go source files for //stencil:template directives and
writes a <file>_stencil.go next to each annotated file. With no arguments
the current directory is scanned recursively.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	logger := buildLogger()
	defer logger.Sync()

	cfg, err := stencil.LoadConfig(nil, configPath())
	if err != nil {
		return err
	}
	compiler := stencil.NewCompiler(cfg, nil, logger)

	files, err := collectGoFiles(args)
	if err != nil {
		return err
	}

	generated := 0
	for _, file := range files {
		inputs, err := input.ParseFile(file, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if len(inputs) == 0 {
			continue
		}

		var parts []string
		for _, in := range inputs {
			c := compiler
			if in.ConfigPath != "" {
				override, err := stencil.LoadConfig(nil, in.ConfigPath)
				if err != nil {
					return err
				}
				c = stencil.NewCompiler(override, nil, logger)
			}
			result, err := c.Compile(in)
			if err != nil {
				if se, ok := err.(*stencil.Error); ok && se.Kind == stencil.ErrSyntax {
					fmt.Fprintln(os.Stderr, se.Error())
					fmt.Fprint(os.Stderr, se.SourceContext())
					return fmt.Errorf("compilation failed")
				}
				return err
			}

			if in.Print == input.PrintAST || in.Print == input.PrintAll {
				fmt.Println(result.AST)
			}
			if len(parts) == 0 {
				parts = append(parts, result.File())
			} else {
				parts = append(parts, result.Methods)
			}
			if in.Print == input.PrintCode || in.Print == input.PrintAll {
				fmt.Println(parts[len(parts)-1])
			}
		}

		outPath := strings.TrimSuffix(file, ".go") + "_stencil.go"
		source := []byte(strings.Join(parts, "\n"))
		formatted, err := imports.Process(outPath, source, nil)
		if err != nil {
			logger.Warn("generated code did not format cleanly",
				zap.String("file", outPath), zap.Error(err))
			formatted = source
		}
		if err := os.WriteFile(outPath, formatted, 0o644); err != nil {
			return err
		}
		logger.Info("wrote generated file",
			zap.String("file", outPath), zap.Int("templates", len(inputs)))
		generated++
	}

	fmt.Printf("stencil: generated %d file(s)\n", generated)
	return nil
}

// collectGoFiles walks the given paths for Go sources, skipping tests,
// previously generated files, and hidden or underscore directories.
func collectGoFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(name, ".go") ||
				strings.HasSuffix(name, "_test.go") ||
				strings.HasSuffix(name, "_stencil.go") {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
