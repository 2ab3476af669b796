package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/archive"
	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
	"github.com/joelkehle/basin-analysis/internal/config"
	"github.com/joelkehle/basin-analysis/internal/extract"
	"github.com/joelkehle/basin-analysis/internal/logging"
	"github.com/joelkehle/basin-analysis/internal/reasoning"
)

// app is what every subcommand shares once flags are parsed.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func rootCommand() *cobra.Command {
	a := &app{}
	var configFile string

	root := &cobra.Command{
		Use:           "basin-analysis",
		Short:         "Petroleum-system analysis from reasoning narratives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	setupFlags(root, &configFile)

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.logger = logger
		return nil
	}
	root.PersistentPostRun = func(*cobra.Command, []string) {
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	}

	root.AddCommand(
		runCommand(a),
		batchCommand(a),
		serveCommand(a),
		reportCommand(a),
	)
	return root
}

// setupFlags defines the global flags. Zero defaults leave the value to the
// config file, environment or built-in default.
func setupFlags(root *cobra.Command, configFile *string) {
	f := root.PersistentFlags()
	f.StringVar(configFile, "config", "", "Path to a YAML config file")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("log-format", "", "Log format: console or json")
	f.String("model", "", "Reasoning model name")
	f.Int64("max-tokens", 0, "Maximum tokens per completion")
	f.Int("max-attempts", 0, "Reasoning attempts per stage")
	f.String("replay-dir", "", "Serve saved narratives from this directory instead of calling the API")
	f.String("record-dir", "", "Save every narrative to this directory")
	f.String("chance-method", "", "Chance combination: weighted_geometric or weighted_mean")
	f.Float64("geological-weight", 0, "Weight of geological chance")
	f.Float64("commercial-weight", 0, "Weight of commercial chance")
	f.String("rules", "", "YAML extraction rules merged over the built-in table")
	f.String("archive", "", "Path to the SQLite result archive")
	f.String("addr", "", "HTTP listen address")
	f.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint URL; empty disables tracing")
	f.Int("concurrency", 0, "Analyses run at once by batch and serve")
}

func (a *app) newCaller() (reasoning.Caller, error) {
	rc := a.cfg.Reasoning
	var caller reasoning.Caller
	if rc.ReplayDir != "" {
		a.logger.Info("replaying saved narratives", zap.String("dir", rc.ReplayDir))
		caller = reasoning.NewReplayCaller(rc.ReplayDir)
	} else {
		anthropic, err := reasoning.NewAnthropicCallerFromEnv(rc.Model, rc.MaxTokens)
		if err != nil {
			return nil, err
		}
		caller = reasoning.NewRetryingCaller(anthropic, rc.MaxAttempts, a.logger)
	}
	if rc.RecordDir != "" {
		caller = reasoning.NewRecordingCaller(caller, rc.RecordDir)
	}
	return caller, nil
}

func (a *app) loadRules() (extract.RuleSet, error) {
	rules := extract.DefaultRules()
	if a.cfg.Extract.RulesFile == "" {
		return rules, nil
	}
	f, err := os.Open(a.cfg.Extract.RulesFile)
	if err != nil {
		return extract.RuleSet{}, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	over, err := extract.LoadRules(f)
	if err != nil {
		return extract.RuleSet{}, fmt.Errorf("%s: %w", a.cfg.Extract.RulesFile, err)
	}
	return rules.Merge(over), nil
}

func (a *app) newPipeline(observer basinanalysis.StageObserver) (*basinanalysis.Pipeline, error) {
	caller, err := a.newCaller()
	if err != nil {
		return nil, err
	}
	rules, err := a.loadRules()
	if err != nil {
		return nil, err
	}
	runner := basinanalysis.NewLLMStageRunner(basinanalysis.NewStageExecutor(caller, a.logger), rules, a.cfg.Chance)
	opts := []basinanalysis.Option{
		basinanalysis.WithMultiPhysics(runner),
		basinanalysis.WithPolicy(a.cfg.Chance),
		basinanalysis.WithLogger(a.logger),
	}
	if observer != nil {
		opts = append(opts, basinanalysis.WithObserver(observer))
	}
	return basinanalysis.NewPipeline(runner, opts...), nil
}

func (a *app) openArchive() (*archive.Store, error) {
	return archive.Open(a.cfg.Archive.Path, a.logger)
}
