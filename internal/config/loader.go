package config

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/gifdeploy/internal/ctxlog"
	"github.com/specialistvlad/gifdeploy/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Loader reads network files.
type Loader struct {
	lookupEnv func(string) (string, bool)
}

// Option configures a Loader.
type Option func(*Loader)

// WithLookupEnv replaces os.LookupEnv as the source of env() values.
func WithLookupEnv(f func(string) (string, bool)) Option {
	return func(l *Loader) { l.lookupEnv = f }
}

// NewLoader creates a new HCL network loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// fileSchema only lists the network blocks of a file; their bodies are
// decoded on demand so that one network's env() calls never affect another.
var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "network", LabelNames: []string{"name"}},
	},
}

type networkBlock struct {
	block *hcl.Block
	file  string
}

// Load parses every .hcl file under paths and decodes the network called
// name. Other networks are only checked for structure: defining the same
// network twice is an error, their env() calls are never evaluated.
func (l *Loader) Load(ctx context.Context, name string, paths ...string) (*Network, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := fsutil.FindFilesByExtension(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	blocks := make(map[string]networkBlock)
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		content, diags := hclFile.Body.Content(fileSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		for _, b := range content.Blocks {
			label := b.Labels[0]
			if prev, dup := blocks[label]; dup {
				return nil, fmt.Errorf("network %q defined in both %s and %s", label, prev.file, file)
			}
			blocks[label] = networkBlock{block: b, file: file}
		}
	}

	found, ok := blocks[name]
	if !ok {
		known := make([]string, 0, len(blocks))
		for k := range blocks {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("network %q is not defined (known: %v)", name, known)
	}

	n := &Network{Name: name, File: found.file}
	if diags := gohcl.DecodeBody(found.block.Body, l.evalContext(), n); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode network %q in %s: %w", name, found.file, diags)
	}
	logger.Debug("HCL loading complete.", "networks", len(blocks), "network", name)
	return n, nil
}

func (l *Loader) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": envFunc(l.lookupEnv),
		},
	}
}

// envFunc implements env(name) and env(name, default). An unset variable
// without a default is an error.
func envFunc(lookup func(string) (string, bool)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "default", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if len(args) > 2 {
				return cty.NilVal, fmt.Errorf("env takes a name and at most one default, got %d arguments", len(args))
			}
			name := args[0].AsString()
			if v, ok := lookup(name); ok {
				return cty.StringVal(v), nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return cty.NilVal, fmt.Errorf("environment variable %s is not set", name)
		},
	})
}
