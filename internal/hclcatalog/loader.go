// Package hclcatalog loads component descriptors from HCL manifests.
//
// A manifest declares components as blocks:
//
//	component "core" "auth" {
//	  requires = ["db"]
//	  optional = ["metrics"]
//	  settings = { load_ms = 25 }
//	}
//
// The block labels are the category and the unique component name. The
// settings attribute is an arbitrary object carried through to the embedding
// application untouched.
package hclcatalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/descriptor"
)

// Loader reads .hcl manifests into descriptors. It implements
// catalog.Source.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a Loader with a fresh parser.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

var manifestSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "component", LabelNames: []string{"category", "name"}},
	},
}

var componentSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "requires"},
		{Name: "optional"},
		{Name: "settings"},
	},
}

// Load parses every manifest under the given paths. A path may be a single
// .hcl file or a directory searched recursively. Descriptors come back in
// file order, blocks in declaration order, which makes the registration
// order stable for an unchanged catalog.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]descriptor.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findManifests(paths)
	if err != nil {
		return nil, fmt.Errorf("locating catalog manifests: %w", err)
	}
	logger.Debug("Catalog manifests located.", "count", len(files))

	var descs []descriptor.Descriptor
	for _, path := range files {
		file, diags := l.parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %w", path, diags)
		}

		content, diags := file.Body.Content(manifestSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("reading %s: %w", path, diags)
		}

		for _, block := range content.Blocks {
			d, err := decodeComponent(block)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", path, err)
			}
			logger.Debug("Component declaration loaded.",
				"component", d.Name, "category", d.Category,
				"requires", len(d.Requires), "optional", len(d.Optional))
			descs = append(descs, d)
		}
	}

	return descs, nil
}

// decodeComponent translates one component block into a descriptor.
func decodeComponent(block *hcl.Block) (descriptor.Descriptor, error) {
	d := descriptor.Descriptor{
		Category: block.Labels[0],
		Name:     block.Labels[1],
	}

	content, diags := block.Body.Content(componentSchema)
	if diags.HasErrors() {
		return d, fmt.Errorf("component %q: %w", d.Name, diags)
	}

	var err error
	if attr, ok := content.Attributes["requires"]; ok {
		if d.Requires, err = decodeNameList(attr); err != nil {
			return d, fmt.Errorf("component %q: %w", d.Name, err)
		}
	}
	if attr, ok := content.Attributes["optional"]; ok {
		if d.Optional, err = decodeNameList(attr); err != nil {
			return d, fmt.Errorf("component %q: %w", d.Name, err)
		}
	}
	if attr, ok := content.Attributes["settings"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return d, fmt.Errorf("component %q: settings: %w", d.Name, diags)
		}
		converted, err := ctyToGo(val)
		if err != nil {
			return d, fmt.Errorf("component %q: settings: %w", d.Name, err)
		}
		settings, ok := converted.(map[string]any)
		if !ok && converted != nil {
			return d, fmt.Errorf("component %q: settings must be an object", d.Name)
		}
		d.Settings = settings
	}

	return d, nil
}

// decodeNameList evaluates a requires/optional attribute into plain names.
func decodeNameList(attr *hcl.Attribute) ([]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %w", attr.Name, diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("%s must be a list of component names", attr.Name)
	}

	var names []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() || elem.Type() != cty.String {
			return nil, fmt.Errorf("%s must contain only strings", attr.Name)
		}
		names = append(names, elem.AsString())
	}
	return names, nil
}

// findManifests expands each path into the .hcl files beneath it. Files are
// collected in argument order, directories walked lexically.
func findManifests(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
				files = append(files, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return files, nil
}
