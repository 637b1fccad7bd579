// Package main implements the CLI driver for the disposeguard linter.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"runtime/pprof"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/715d/disposeguard/pkg/modfile"
	"github.com/715d/disposeguard/pkg/rules"
	"github.com/715d/disposeguard/pkg/rules/disposeguard"
	"github.com/715d/disposeguard/pkg/suppress"
)

// Config holds all command-line configuration options for the disposeguard analyzer.
type Config struct {
	Files              []string // the module description files to analyze
	Verbose            bool     // enables detailed output and statistics
	JSON               bool     // enables JSON output format
	Profile            bool     // enables CPU and memory profiling
	ConfigFile         string   // optional YAML rule configuration file
	LifecycleInterface string   // overrides the lifecycle interface name
	GuardException     string   // overrides the guard exception type name
	DisposeMethod      string   // overrides the disposal method name
	Suppressions       []string // patterns muting findings, merged with the config file
	Parallel           int      // concurrent type checks, 0 = NumCPU
}

const (
	exitFindingsFound = 1
	exitError         = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "disposeguard [module files...]",
		Short: "Find unguarded use of disposed objects in decoded modules",
		Long: `disposeguard is a bytecode linter over decoded module descriptions.

It flags public methods of disposal-lifecycle types that provably touch
their own instance state (a field of self, or a private instance call on
self) without guarding against use after disposal: such methods should
raise the designated "already disposed" exception, or delegate to a
helper that performs the check.`,
		Example: `  disposeguard module.yaml                      # Analyze one module
  disposeguard a.yaml b.yaml                    # Analyze several modules
  disposeguard -v module.yaml                   # Verbose diagnostics
  disposeguard --json module.yaml > report.json # JSON report
  disposeguard --suppress 'Legacy.*::*' m.yaml  # Mute a type subtree`,
		Args:               cobra.MinimumNArgs(1),
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf("disposeguard version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	// Define flags.
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Rule configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&cfg.LifecycleInterface, "lifecycle-interface", "", "Override the lifecycle interface name")
	rootCmd.PersistentFlags().StringVar(&cfg.GuardException, "guard-exception", "", "Override the guard exception type name")
	rootCmd.PersistentFlags().StringVar(&cfg.DisposeMethod, "dispose-method", "", "Override the disposal method name")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.Suppressions, "suppress", nil, "Suppress findings matching [rule/]method-glob (repeatable)")
	rootCmd.PersistentFlags().IntVar(&cfg.Parallel, "parallel", 0, "Concurrent type checks (0 = number of CPUs)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg.Files = args

	slog.Info("starting disposal-guard analysis", "files", cfg.Files)

	result, err := runAnalysis(cmd.Context(), &cfg)
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := writeResults(result, &cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if len(result.Findings) > 0 {
		return errWithCode(nil, exitFindingsFound)
	}
	return nil
}

// Result represents the analysis output across all module files including
// the findings and execution statistics.
type Result struct {
	Findings []*rules.Finding `json:"findings"`
	Stats    struct {
		TotalMethods     int           `json:"total_methods"`
		SkippedMethods   int           `json:"skipped_methods"`
		Findings         int           `json:"findings"`
		Suppressed       int64         `json:"suppressed"`
		AnalysisDuration time.Duration `json:"analysis_duration"`
	} `json:"stats"`
}

func runAnalysis(ctx context.Context, cfg *Config) (*Result, error) {
	start := time.Now()

	ruleCfg, patterns, err := loadRuleConfig(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configured rule",
		"lifecycle_interface", ruleCfg.LifecycleInterface,
		"guard_exception_type", ruleCfg.GuardExceptionType,
		"dispose_method", ruleCfg.DisposeMethod,
		"suppressions", len(patterns))

	suppressions, err := suppress.Parse(patterns)
	if err != nil {
		return nil, err
	}

	rule := disposeguard.New(ruleCfg)
	runner := rules.NewRunner([]rules.MethodRule{rule}, rules.RunnerOptions{Parallelism: cfg.Parallel})
	collector := rules.NewCollector()

	var reporter rules.Reporter = collector
	var filter *suppress.Filter
	if suppressions.Len() > 0 {
		filter = suppress.NewFilter(suppressions, collector)
		reporter = filter
	}

	var r Result
	for _, path := range cfg.Files {
		slog.Info("loading module", "file", path)
		mod, err := modfile.Load(path)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded module", "module", mod.Name, "types", len(mod.Types), "methods", mod.NumMethods())

		stats, err := runner.Run(ctx, mod, reporter)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", path, err)
		}
		r.Stats.TotalMethods += stats.Methods
		r.Stats.SkippedMethods += stats.Skipped
	}

	r.Findings = collector.Findings()
	r.Stats.Findings = len(r.Findings)
	if filter != nil {
		r.Stats.Suppressed = filter.Suppressed()
	}
	r.Stats.AnalysisDuration = time.Since(start)
	slog.Info("analysis completed", "dur", r.Stats.AnalysisDuration)

	return &r, nil
}

// fileConfig is the YAML schema of --config files: the rule settings plus
// the suppression list.
type fileConfig struct {
	disposeguard.Config `yaml:",inline"`
	Suppress            []string `yaml:"suppress,omitempty"`
}

// loadRuleConfig resolves the rule configuration: built-in defaults, then
// the config file, then flag overrides. Suppression patterns merge across
// the config file and the command line.
func loadRuleConfig(cfg *Config) (disposeguard.Config, []string, error) {
	fc := fileConfig{Config: disposeguard.DefaultConfig()}
	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return fc.Config, nil, fmt.Errorf("reading config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return fc.Config, nil, fmt.Errorf("decoding config file %s: %w", cfg.ConfigFile, err)
		}
	}
	if cfg.LifecycleInterface != "" {
		fc.LifecycleInterface = cfg.LifecycleInterface
	}
	if cfg.GuardException != "" {
		fc.GuardExceptionType = cfg.GuardException
	}
	if cfg.DisposeMethod != "" {
		fc.DisposeMethod = cfg.DisposeMethod
	}
	return fc.Config, append(fc.Suppress, cfg.Suppressions...), nil
}

func writeResults(result *Result, cfg *Config) error {
	var output string
	var err error

	if cfg.JSON {
		output, err = formatJSONOutput(result)
	} else {
		output = formatTextOutput(result, cfg)
	}

	if err != nil {
		return err
	}

	fmt.Print(output)
	return nil
}

func formatJSONOutput(result *Result) (string, error) {
	data, err := json.MarshalIndent(jOutput{
		Findings:  result.Findings,
		Stats:     result.Stats,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data), nil
}

func formatTextOutput(result *Result, cfg *Config) string {
	var output strings.Builder

	if cfg.Verbose {
		slog.Info("",
			"total_methods", result.Stats.TotalMethods,
			"skipped_methods", result.Stats.SkippedMethods,
			"findings", result.Stats.Findings,
			"suppressed", result.Stats.Suppressed,
			"analysis_duration", result.Stats.AnalysisDuration.String())
	}

	if len(result.Findings) == 0 {
		slog.Info("no findings")
		return output.String()
	}

	// Group findings by module for better organization.
	moduleFindings := make(map[string][]*rules.Finding)
	for _, f := range result.Findings {
		moduleFindings[f.Module] = append(moduleFindings[f.Module], f)
	}

	for _, mod := range slices.Sorted(maps.Keys(moduleFindings)) {
		if len(moduleFindings) > 1 && cfg.Verbose {
			output.WriteString(fmt.Sprintf("\n%s:\n", mod))
		}

		for _, f := range moduleFindings[mod] {
			// Format: module: method: rule [severity/confidence]
			if !cfg.Verbose {
				output.WriteString(fmt.Sprintf("%s: %s\n", f.Module, f.String()))
			} else {
				output.WriteString(fmt.Sprintf("  %s\n", f.String()))
			}
		}
	}

	return output.String()
}

type jOutput struct {
	Findings  []*rules.Finding `json:"findings"`
	Stats     any              `json:"stats"`
	Version   string           `json:"version"`
	Timestamp string           `json:"timestamp"`
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		logger := slog.New(handler)
		slog.SetDefault(logger)
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}
