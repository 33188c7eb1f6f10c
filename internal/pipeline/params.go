package pipeline

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/specialistvlad/gifdeploy/internal/gif"
)

// Params is every name and identifier the pipeline needs. The ids are the
// values the operator expects the services to assign; the ids the services
// actually return are authoritative and a differing expectation fails the run.
type Params struct {
	Registry    gif.Address
	OracleType  gif.OracleType
	OracleName  string
	OracleID    *big.Int
	ProductName string
	ProductID   *big.Int
}

// Validate checks that every field is present and every name fits a bytes32.
// All problems are reported together.
func (p Params) Validate() error {
	var errs []error
	if p.Registry.IsZero() {
		errs = append(errs, errors.New("registry address is required"))
	}
	for _, f := range []struct{ field, value string }{
		{"oracle type name", p.OracleType.Name},
		{"oracle name", p.OracleName},
		{"product name", p.ProductName},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.field))
			continue
		}
		if _, err := gif.Bytes32(f.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.field, err))
		}
	}
	if p.OracleType.InputFormat == "" || p.OracleType.OutputFormat == "" {
		errs = append(errs, errors.New("oracle type input and output formats are required"))
	}
	if p.OracleID == nil {
		errs = append(errs, errors.New("oracle id is required"))
	}
	if p.ProductID == nil {
		errs = append(errs, errors.New("product id is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid pipeline parameters: %w", errors.Join(errs...))
	}
	return nil
}
