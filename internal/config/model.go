package config

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/pipeline"
)

// Network is the body of one `network "name" { ... }` block.
type Network struct {
	// Name is the block label.
	Name      string
	Transport string `hcl:"transport,optional"`
	Endpoint  string `hcl:"endpoint,optional"`
	Namespace string `hcl:"namespace,optional"`
	Registry  string `hcl:"registry"`

	OracleType *OracleTypeBlock `hcl:"oracle_type,block"`
	Oracle     *EntityBlock     `hcl:"oracle,block"`
	Product    *EntityBlock     `hcl:"product,block"`

	// File is the file the block was read from.
	File string
}

// OracleTypeBlock describes the oracle type to propose.
type OracleTypeBlock struct {
	Name         string `hcl:"name"`
	InputFormat  string `hcl:"input_format,optional"`
	OutputFormat string `hcl:"output_format,optional"`
}

// EntityBlock names an oracle or product and the id the operator expects
// its service to assign.
type EntityBlock struct {
	Name string `hcl:"name"`
	ID   string `hcl:"id,optional"`
}

// Params converts the network into pipeline parameters. Omitted formats take
// the hello world defaults. Presence of every value is checked later by
// pipeline.Params.Validate; only malformed values fail here.
func (n *Network) Params() (pipeline.Params, error) {
	var p pipeline.Params
	var errs []error

	if n.Registry != "" {
		addr, err := gif.ParseAddress(n.Registry)
		if err != nil {
			errs = append(errs, fmt.Errorf("registry: %w", err))
		}
		p.Registry = addr
	}

	p.OracleType = gif.OracleType{
		InputFormat:  gif.DefaultInputFormat,
		OutputFormat: gif.DefaultOutputFormat,
	}
	if t := n.OracleType; t != nil {
		p.OracleType.Name = t.Name
		if t.InputFormat != "" {
			p.OracleType.InputFormat = t.InputFormat
		}
		if t.OutputFormat != "" {
			p.OracleType.OutputFormat = t.OutputFormat
		}
	}

	if o := n.Oracle; o != nil {
		p.OracleName = o.Name
		id, err := parseOptionalID(o.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("oracle id: %w", err))
		}
		p.OracleID = id
	}
	if pr := n.Product; pr != nil {
		p.ProductName = pr.Name
		id, err := parseOptionalID(pr.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("product id: %w", err))
		}
		p.ProductID = id
	}

	if len(errs) > 0 {
		return pipeline.Params{}, fmt.Errorf("network %q: %w", n.Name, errors.Join(errs...))
	}
	return p, nil
}

func parseOptionalID(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return gif.ParseID(s)
}
