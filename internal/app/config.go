package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/gifdeploy/internal/pipeline"
	"github.com/specialistvlad/gifdeploy/internal/tracing"
)

// Transports accepted by Config.Transport.
const (
	TransportRPC      = "rpc"
	TransportSocketIO = "socketio"
	TransportMemory   = "memory"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // hcl network files
	Network    string

	// Transport, Endpoint and Namespace override the network file when set.
	Transport string
	Endpoint  string
	Namespace string

	From        string
	JournalPath string
	Timeout     time.Duration
	CallTimeout time.Duration

	LogFormat string
	LogLevel  string
	Trace     tracing.Config
}

func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.ConfigPath == "" {
		errs = append(errs, errors.New("ConfigPath is a required configuration field and cannot be empty"))
	}
	if cfg.Network == "" {
		errs = append(errs, errors.New("Network is a required configuration field and cannot be empty"))
	}
	switch cfg.Transport {
	case "", TransportRPC, TransportSocketIO, TransportMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", cfg.Transport))
	}
	if cfg.From != "" {
		if _, err := pipeline.ParseStageID(cfg.From); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Timeout < 0 || cfg.CallTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if err := cfg.Trace.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}
