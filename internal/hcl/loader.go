// Package hcl implements the HCL flavour of the configuration loader. A
// project file looks like:
//
//	project {
//	  entries  = ["src/index.js"]
//	  dist_dir = "dist"
//	  workers  = 8
//
//	  environment {
//	    context = "browser"
//	  }
//	}
package hcl

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/packden/packden/internal/config"
	"github.com/packden/packden/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates an HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{{Type: "project"}},
}

var projectSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "entries", Required: true},
		{Name: "root_dir"},
		{Name: "dist_dir"},
		{Name: "workers"},
	},
	Blocks: []hcl.BlockHeaderSchema{{Type: "environment"}},
}

var environmentSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "context"},
	},
}

// Load parses one project file into the unified model and applies
// defaults for everything the file leaves out.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading project configuration.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	content, diags := file.Body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", path, diags)
	}

	projectBlocks := content.Blocks.OfType("project")
	if len(projectBlocks) != 1 {
		return nil, fmt.Errorf("decode %s: expected exactly one project block, found %d", path, len(projectBlocks))
	}

	project, err := decodeProject(projectBlocks[0].Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// Defaults anchored on the config file location.
	if project.RootDir == "" {
		project.RootDir = filepath.Dir(path)
	}
	if project.DistDir == "" {
		project.DistDir = filepath.Join(project.RootDir, "dist")
	}
	if project.Context == "" {
		project.Context = "browser"
	}

	model := &config.Model{Project: project}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Project configuration loaded.", "entries", len(project.Entries), "context", project.Context)
	return model, nil
}

func decodeProject(body hcl.Body) (*config.Project, error) {
	content, diags := body.Content(projectSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	p := &config.Project{}
	if err := decodeAttr(content.Attributes, "entries", cty.List(cty.String), &p.Entries); err != nil {
		return nil, err
	}
	if err := decodeAttr(content.Attributes, "root_dir", cty.String, &p.RootDir); err != nil {
		return nil, err
	}
	if err := decodeAttr(content.Attributes, "dist_dir", cty.String, &p.DistDir); err != nil {
		return nil, err
	}
	if err := decodeAttr(content.Attributes, "workers", cty.Number, &p.Workers); err != nil {
		return nil, err
	}

	for _, block := range content.Blocks.OfType("environment") {
		envContent, diags := block.Body.Content(environmentSchema)
		if diags.HasErrors() {
			return nil, diags
		}
		if err := decodeAttr(envContent.Attributes, "context", cty.String, &p.Context); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// decodeAttr evaluates one attribute, converts it to the wanted cty type
// and decodes it into the Go target. Absent optional attributes leave the
// target untouched.
func decodeAttr(attrs hcl.Attributes, name string, want cty.Type, target any) error {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("attribute %q: %w", name, diags)
	}
	val, err := convert.Convert(val, want)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if err := gocty.FromCtyValue(val, target); err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	return nil
}
