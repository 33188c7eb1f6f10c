package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/specialistvlad/gifdeploy/internal/app"
	"github.com/specialistvlad/gifdeploy/internal/tracing"
)

// EnvPrefix is prepended to every flag name to form its environment variable,
// with dashes turned into underscores: GIFDEPLOY_LOG_LEVEL, GIFDEPLOY_NETWORK.
const EnvPrefix = "GIFDEPLOY"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Action is what the command line asked for.
type Action int

const (
	// ActionNone means help was explicitly requested and printed; the
	// program should exit cleanly.
	ActionNone Action = iota
	ActionRun
	ActionStages
)

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// Parse processes command-line arguments. For ActionRun it also returns the
// validated configuration. Every error it returns is an *ExitError.
func Parse(args []string, output io.Writer) (*app.Config, Action, error) {
	slog.Debug("CLI parser started.")
	var (
		cfg    *app.Config
		action = ActionNone
	)
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "gifdeploy",
		Short: "Registers an oracle type, an oracle and a product on a GIF instance.",
		Long: `gifdeploy registers an oracle type, deploys and approves an oracle
conforming to it, then deploys and approves a product consuming it, against
the services a GIF registry points to.

Every flag can also be set through the environment, e.g. GIFDEPLOY_NETWORK.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return &ExitError{Code: 2, Message: "a command is required: 'run' or 'stages'"}
		},
	}
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)
	root.PersistentFlags().String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	root.PersistentFlags().String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the registration stages against a network.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			c, err := buildConfig(v)
			if err != nil {
				return err
			}
			cfg, action = c, ActionRun
			return nil
		},
	}
	f := runCmd.Flags()
	f.StringP("config", "c", "networks", "Path to a network .hcl file or a directory of them.")
	f.StringP("network", "n", "development", "Name of the network block to deploy to.")
	f.String("transport", "", "Override the network's transport: 'rpc', 'socketio' or 'memory'.")
	f.String("endpoint", "", "Override the network's endpoint URL.")
	f.String("namespace", "", "Override the network's socket.io namespace.")
	f.String("from", "", "Start at this stage, assuming the earlier ones completed: 'type', 'oracle' or 'product'.")
	f.String("journal", "", "Write the run journal (YAML) to this path.")
	f.Duration("timeout", 0, "Abort the whole run after this long. 0 disables.")
	f.Duration("call-timeout", 30*time.Second, "Per-call timeout of the rpc transport. 0 disables.")
	f.Bool("trace", false, "Record OpenTelemetry spans for the run.")
	f.String("trace-exporter", tracing.ExporterFile, "Span exporter: 'none', 'stdout', 'file' or 'otlp'.")
	f.String("trace-file", "gifdeploy-traces.jsonl", "Output file of the 'file' exporter.")
	f.String("otlp-endpoint", "", "Collector address of the 'otlp' exporter (default localhost:4317).")

	stagesCmd := &cobra.Command{
		Use:   "stages",
		Short: "Print the registration stages with what each requires and produces.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			action = ActionStages
			return nil
		},
	}

	root.AddCommand(runCmd, stagesCmd)
	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, ActionNone, exitErr
		}
		return nil, ActionNone, usageError(err)
	}
	slog.Debug("CLI parser finished successfully.", "action", action)
	return cfg, action, nil
}

func buildConfig(v *viper.Viper) (*app.Config, error) {
	logFormat := strings.ToLower(v.GetString("log-format"))
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := app.NewConfig(app.Config{
		ConfigPath:  v.GetString("config"),
		Network:     v.GetString("network"),
		Transport:   strings.ToLower(v.GetString("transport")),
		Endpoint:    v.GetString("endpoint"),
		Namespace:   v.GetString("namespace"),
		From:        v.GetString("from"),
		JournalPath: v.GetString("journal"),
		Timeout:     v.GetDuration("timeout"),
		CallTimeout: v.GetDuration("call-timeout"),
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		Trace: tracing.Config{
			Enabled:      v.GetBool("trace"),
			Exporter:     v.GetString("trace-exporter"),
			FilePath:     v.GetString("trace-file"),
			OTLPEndpoint: v.GetString("otlp-endpoint"),
		},
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid configuration: %v", err)}
	}
	return cfg, nil
}
