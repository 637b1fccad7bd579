package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/715d/disposeguard/pkg/bytecode"
)

// RunnerOptions holds configuration options for the runner.
type RunnerOptions struct {
	Parallelism int // Concurrent type-analysis goroutines; NumCPU when zero.
}

// Runner fans a module's methods out to a set of rules. Methods are
// independent, so types are checked concurrently; findings flow to a
// Reporter as they are produced.
type Runner struct {
	rules []MethodRule
	opts  RunnerOptions
}

// NewRunner creates a new runner over the given rules.
func NewRunner(rules []MethodRule, opts RunnerOptions) *Runner {
	return &Runner{
		rules: rules,
		opts:  opts,
	}
}

// RunStats summarizes one run over one module.
type RunStats struct {
	Methods  int // Methods enumerated.
	Skipped  int // Methods skipped because their body failed validation.
	Findings int // Findings reported.
}

// Run checks every method of the module against every rule and reports
// findings to rep. A malformed method body is skipped with a debug log; a
// failing rule is logged and skipped; neither aborts the batch. Run stops
// scheduling work once ctx is canceled and then reports the cause.
func (r *Runner) Run(ctx context.Context, mod *bytecode.Module, rep Reporter) (RunStats, error) {
	if len(r.rules) == 0 {
		return RunStats{}, fmt.Errorf("no rules provided")
	}
	if mod == nil {
		return RunStats{}, fmt.Errorf("no module provided")
	}

	pass := NewPass(mod)

	limit := r.opts.Parallelism
	if limit <= 0 {
		limit = goruntime.NumCPU()
	}

	var wg errgroup.Group
	wg.SetLimit(limit)
	var methods, skipped, findings int64

	for _, typ := range mod.Types {
		if ctx.Err() != nil {
			break
		}
		wg.Go(func() error {
			for _, m := range typ.Methods {
				atomic.AddInt64(&methods, 1)
				for _, rule := range r.rules {
					f, err := rule.CheckMethod(pass, m)
					if err != nil {
						if errors.Is(err, bytecode.ErrNonMonotonicOffsets) ||
							errors.Is(err, bytecode.ErrDanglingBranchTarget) {
							slog.Debug("skipping malformed method body",
								"rule", rule.Name(), "method", m.FullName(), "error", err)
							atomic.AddInt64(&skipped, 1)
							break
						}
						// Log but don't fail - one method must not sink the batch.
						slog.Warn("checking method",
							"rule", rule.Name(), "method", m.FullName(), "error", err)
						continue
					}
					if f == nil {
						continue
					}
					if f.Module == "" {
						f.Module = mod.Name
					}
					rep.Report(f)
					atomic.AddInt64(&findings, 1)
				}
			}
			return nil
		})
	}

	_ = wg.Wait()

	stats := RunStats{
		Methods:  int(methods),
		Skipped:  int(skipped),
		Findings: int(findings),
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("analysis interrupted: %w", err)
	}
	return stats, nil
}
