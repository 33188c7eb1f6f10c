package pipeline

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Status is the outcome of one journaled operation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
	StatusNotRun Status = "not_run"
)

// Entry is one operation of one stage.
type Entry struct {
	Stage     StageID           `yaml:"stage"`
	Operation string            `yaml:"operation"`
	Status    Status            `yaml:"status"`
	Outputs   map[string]string `yaml:"outputs,omitempty"`
	Error     string            `yaml:"error,omitempty"`
	At        time.Time         `yaml:"at"`
}

// Journal is the record of a run: what was resolved, which operations ran
// and what they produced. After a failure it is the description of the
// intermediate state left behind on the remote side.
type Journal struct {
	RunID      string            `yaml:"run_id"`
	StartedAt  time.Time         `yaml:"started_at"`
	FinishedAt time.Time         `yaml:"finished_at"`
	From       StageID           `yaml:"from,omitempty"`
	State      string            `yaml:"state"`
	FailedAt   StageID           `yaml:"failed_at,omitempty"`
	Registry   string            `yaml:"registry"`
	Services   map[string]string `yaml:"services,omitempty"`
	Bindings   map[string]string `yaml:"bindings,omitempty"`
	Entries    []Entry           `yaml:"entries"`

	now func() time.Time
}

func newJournal(runID string, now func() time.Time) *Journal {
	return &Journal{RunID: runID, StartedAt: now(), Services: map[string]string{}, now: now}
}

func (j *Journal) record(stage StageID, op string, status Status, outputs map[string]string, err error) {
	e := Entry{Stage: stage, Operation: op, Status: status, Outputs: outputs, At: j.now()}
	if err != nil {
		e.Error = err.Error()
	}
	j.Entries = append(j.Entries, e)
}

// Operations returns "stage/operation" for every entry with the given status.
func (j *Journal) Operations(status Status) []string {
	var out []string
	for _, e := range j.Entries {
		if e.Status == status {
			out = append(out, fmt.Sprintf("%s/%s", e.Stage, e.Operation))
		}
	}
	return out
}

// Marshal renders the journal as YAML.
func (j *Journal) Marshal() ([]byte, error) {
	return yaml.Marshal(j)
}

// WriteFile writes the journal as YAML to path.
func (j *Journal) WriteFile(path string) error {
	data, err := j.Marshal()
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// ReadJournal loads a journal written by WriteFile.
func ReadJournal(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var j Journal
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode journal %s: %w", path, err)
	}
	return &j, nil
}

// diff returns the entries of after that are new or changed relative to before.
func diff(before, after map[string]string) map[string]string {
	var out map[string]string
	keys := make([]string, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := before[k]; ok && v == after[k] {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = after[k]
	}
	return out
}
