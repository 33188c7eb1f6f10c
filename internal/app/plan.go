package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/gifdeploy/internal/pipeline"
)

// PrintPlan writes one line per stage: what it requires, what it produces,
// the services it calls and its operations.
func PrintPlan(w io.Writer, stages []*pipeline.Stage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tREQUIRES\tPRODUCES\tSERVICES\tOPERATIONS")
	for _, st := range stages {
		ops := make([]string, len(st.Operations))
		for i, op := range st.Operations {
			ops[i] = op.Name
		}
		services := make([]string, len(st.Services))
		for i, s := range st.Services {
			services[i] = string(s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			st.ID, keys(st.Requires), keys(st.Produces),
			orDash(strings.Join(services, ",")), orDash(strings.Join(ops, ",")))
	}
	return tw.Flush()
}

func keys(ks []pipeline.Key) string {
	s := make([]string, len(ks))
	for i, k := range ks {
		s[i] = string(k)
	}
	return orDash(strings.Join(s, ","))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
