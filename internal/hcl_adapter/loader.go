package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/framegraph/internal/config"
	"github.com/vk/framegraph/internal/ctxlog"
)

// Loader is the HCL implementation of the config.Loader interface.
type Loader struct {
	evalCtx *hcl.EvalContext
}

// NewLoader creates a new HCL frame graph loader.
func NewLoader() *Loader {
	return &Loader{evalCtx: newEvalContext()}
}

// Load parses every .hcl file under paths. Resources from all files are
// declared before any pass, so a pass may use a resource from another file.
// Passes keep file order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	var roots []*fileRoot
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, l.evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		roots = append(roots, &root)
	}

	model := &config.Model{}
	for _, root := range roots {
		for _, img := range root.Images {
			if err := l.translateImage(ctx, model, img); err != nil {
				return nil, err
			}
		}
		for _, buf := range root.Buffers {
			if err := l.translateBuffer(ctx, model, buf); err != nil {
				return nil, err
			}
		}
	}

	outputs := make(map[string]outputRef)
	seen := make(map[string]bool)
	for _, root := range roots {
		for _, p := range root.Passes {
			if seen[p.Name] {
				return nil, fmt.Errorf("pass %q is declared more than once", p.Name)
			}
			seen[p.Name] = true
			pass, diags := l.translatePass(ctx, model, p, outputs)
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid pass %q: %w", p.Name, diags)
			}
			model.Passes = append(model.Passes, pass)
		}
	}

	logger.Debug("HCL loading complete.", "images", len(model.Images), "buffers", len(model.Buffers), "passes", len(model.Passes))
	return model, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found, in walk order and without duplicates.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return allFiles, nil
}
