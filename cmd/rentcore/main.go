// Command rentcore serves and queries the rental portfolio document hierarchy.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rentcore/internal/config"
	"rentcore/internal/core"
	"rentcore/internal/logging"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

type rootFlags struct {
	envFiles []string
	trace    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "rentcore",
		Short:         "Rental portfolio document hierarchy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "env files to load before the environment (default .env)")
	cmd.PersistentFlags().BoolVar(&flags.trace, "trace", false, "write operation spans as JSON lines to stderr")

	cmd.AddCommand(
		serveCmd(flags),
		treeCmd(flags),
		documentsCmd(flags),
		statsCmd(flags),
		importCmd(flags),
	)
	return cmd
}

// runtime is the configuration and logger shared by every command.
type runtime struct {
	cfg    *config.Config
	log    *zap.Logger
	tracer core.Tracer
}

func loadRuntime(cmd *cobra.Command, flags *rootFlags) (*runtime, error) {
	cfg, err := config.Load(flags.envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logging.Init(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt := &runtime{cfg: cfg, log: log}
	if flags.trace {
		rt.tracer = core.NewJSONTracer(cmd.ErrOrStderr())
	}
	return rt, nil
}

func (r *runtime) engineOptions(extra ...core.Option) []core.Option {
	opts := []core.Option{
		core.WithLogger(logging.NewAdapter(r.log)),
		core.WithMaxConcurrency(r.cfg.Engine.MaxConcurrency),
		core.WithTracer(r.tracer),
	}
	return append(opts, extra...)
}

func (r *runtime) close() {
	_ = r.log.Sync()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
