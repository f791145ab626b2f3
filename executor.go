// Copyright (C) 2023  Shanhu Tech Inc.
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU Affero General Public License
// for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package weld

import (
	"context"
	"log"
	"runtime"
	"sort"
	"sync"

	"shanhu.io/misc/errcode"
)

// Status is the terminal state of a rule within one build.
type Status int

// Rule states. A rule whose dependency failed is skipped: it never reaches
// its pre-build hook or its action.
const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
	StatusSkipped
)

// ExecutorConfig configures an executor run.
type ExecutorConfig struct {
	Runner  Runner
	Variant Variant
	SrcDir  string       // Directory holding plain-file inputs.
	Cache   *ActionCache // Optional action result cache.
	Jobs    int          // Worker count; defaults to the CPU count.
}

// Executor schedules the rules of a graph on a worker pool. Rules become
// ready when every resolved dependency has committed, which includes the
// dependency's post-build hook; mutually independent rules run in parallel
// with no ordering guarantee. For a single rule, pre-build hook, action and
// post-build hook run in strict sequence.
type Executor struct {
	graph   *Graph
	runner  Runner
	variant Variant
	srcDir  string
	cache   *ActionCache
	jobs    int

	mu         sync.Mutex
	state      map[string]Status
	deps       map[string][]string
	dependents map[string][]string
	waiting    map[string]int
	failedDep  map[string]bool
	digests    map[string]string
	errs       []error
	done       int
	total      int

	ready chan string
	wg    sync.WaitGroup
}

// NewExecutor creates an executor for the given graph.
func NewExecutor(g *Graph, config *ExecutorConfig) *Executor {
	jobs := config.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	variant := config.Variant
	if variant == "" {
		variant = Optimized
	}
	return &Executor{
		graph:   g,
		runner:  config.Runner,
		variant: variant,
		srcDir:  config.SrcDir,
		cache:   config.Cache,
		jobs:    jobs,
	}
}

// Status returns the state a rule ended the build in.
func (e *Executor) Status(name string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state[name]
}

// Errs returns the errors collected during the run, in completion order.
func (e *Executor) Errs() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// Run builds the given targets and everything they transitively depend on.
// With no targets it builds the whole graph. It returns the first error
// encountered; a failed rule fails its entire transitive dependent closure
// while independent subgraphs build to completion.
func (e *Executor) Run(ctx context.Context, targets []string) error {
	if err := e.graph.Check(); err != nil {
		return err
	}
	if err := e.prepare(targets); err != nil {
		return err
	}
	if e.total == 0 {
		return nil
	}

	jobs := e.jobs
	if jobs > e.total {
		jobs = e.total
	}
	for i := 0; i < jobs; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for name := range e.ready {
				e.runRule(ctx, name)
			}
		}()
	}
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) > 0 {
		return e.errs[0]
	}
	if e.done != e.total {
		return errcode.Internalf(
			"build stalled with %d of %d rules done", e.done, e.total,
		)
	}
	return nil
}

// prepare computes the dependency closure of the targets and the initial
// ready set.
func (e *Executor) prepare(targets []string) error {
	if len(targets) == 0 {
		for _, r := range e.graph.Rules() {
			targets = append(targets, r.Name)
		}
	}

	e.state = make(map[string]Status)
	e.deps = make(map[string][]string)
	e.dependents = make(map[string][]string)
	e.waiting = make(map[string]int)
	e.failedDep = make(map[string]bool)
	e.digests = make(map[string]string)

	var visit func(name string) error
	visit = func(name string) error {
		if _, ok := e.deps[name]; ok {
			return nil
		}
		r := e.graph.Rule(name)
		if r == nil {
			return errcode.NotFoundf("rule %q not found", name)
		}
		deps, err := e.graph.deps(r)
		if err != nil {
			return err
		}
		e.deps[name] = deps
		e.state[name] = StatusPending
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
			e.dependents[d] = append(e.dependents[d], name)
		}
		e.waiting[name] = len(deps)
		return nil
	}
	for _, t := range targets {
		if err := visit(t); err != nil {
			return err
		}
	}

	e.total = len(e.deps)
	e.ready = make(chan string, e.total)
	var seeds []string
	for name, n := range e.waiting {
		if n == 0 {
			seeds = append(seeds, name)
		}
	}
	sort.Strings(seeds)
	for _, name := range seeds {
		e.ready <- name
	}
	return nil
}

func (e *Executor) runRule(ctx context.Context, name string) {
	r := e.graph.Rule(name)

	e.mu.Lock()
	skip := e.failedDep[name]
	e.mu.Unlock()

	failed := true
	switch {
	case skip:
		e.setState(name, StatusSkipped)
	case ctx.Err() != nil:
		e.fail(name, errcode.Annotatef(ctx.Err(), "build %q", name))
	default:
		if err := e.build1(ctx, r); err != nil {
			e.fail(name, err)
		} else {
			e.setState(name, StatusDone)
			failed = false
		}
	}
	e.finish(name, failed)
}

func (e *Executor) fail(name string, err error) {
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
	e.setState(name, StatusFailed)
	log.Printf("FAIL %s: %s", name, err)
}

func (e *Executor) setState(name string, s Status) {
	e.mu.Lock()
	e.state[name] = s
	e.mu.Unlock()
}

// finish commits a rule's terminal state, releases its dependents and
// closes the ready channel once every rule in the closure is terminal.
func (e *Executor) finish(name string, failed bool) {
	e.mu.Lock()
	var newReady []string
	for _, d := range e.dependents[name] {
		if failed {
			e.failedDep[d] = true
		}
		e.waiting[d]--
		if e.waiting[d] == 0 {
			newReady = append(newReady, d)
		}
	}
	e.done++
	last := e.done == e.total
	e.mu.Unlock()

	for _, d := range newReady {
		e.ready <- d
	}
	if last {
		close(e.ready)
	}
}

// build1 runs one rule: pre-build hook, action (or cache replay), then
// post-build hook.
func (e *Executor) build1(ctx context.Context, r *Rule) error {
	if err := e.graph.runPreBuild(r); err != nil {
		return err
	}
	if r.NoAction {
		return e.saveDigest(r, "")
	}

	cmd := r.Cmds.For(e.variant)
	if cmd == "" {
		return errcode.InvalidArgf(
			"rule %q has no command for variant %q", r.Name, e.variant,
		)
	}

	digest, err := e.actionDigest(r, cmd)
	if err != nil {
		return errcode.Annotatef(err, "digest %q", r.Name)
	}

	var out []string
	hit := false
	if e.cache != nil {
		res, ok, err := e.cache.Get(digest)
		if err != nil {
			log.Printf("read action cache for %s: %s", r.Name, err)
		} else if ok {
			out = res.Out
			hit = true
		}
	}
	if !hit {
		log.Printf("BUILD %s", r.Name)
		res, err := e.runner.Run(ctx, &Action{
			Rule:  r.Name,
			Cmd:   cmd,
			Ins:   r.Ins,
			Outs:  r.Outs,
			Tools: r.Tools,
		})
		if err != nil {
			return &ActionFailure{Rule: r.Name, Err: err}
		}
		out = res.Out
		if e.cache != nil {
			if err := e.cache.Put(digest, &Result{Out: out}); err != nil {
				log.Printf("save action cache for %s: %s", r.Name, err)
			}
		}
	}

	if err := e.graph.runPostBuild(r, out); err != nil {
		return err
	}
	return e.saveDigestValue(r.Name, digest)
}

// actionDigest fingerprints a rule execution, folding in the stats of its
// plain-file inputs and chaining in the digests of its resolved
// dependencies, which are all terminal by the time the rule runs.
func (e *Executor) actionDigest(r *Rule, cmd string) (string, error) {
	e.mu.Lock()
	deps := make(map[string]string)
	for _, d := range e.deps[r.Name] {
		deps[d] = e.digests[d]
	}
	e.mu.Unlock()

	var files []*fileStat
	for _, in := range r.Ins {
		if e.graph.Rule(in) != nil {
			continue
		}
		stat, err := newFileStat(e.srcDir, in)
		if err != nil {
			return "", errcode.Annotatef(err, "stat %q", in)
		}
		files = append(files, stat)
	}

	fp := &actionFingerprint{
		Rule:    r.Name,
		Command: cmd,
		Ins:     r.Ins,
		Tools:   r.Tools,
		Files:   files,
		Deps:    deps,
	}
	return makeDigest("action", r.Name, fp)
}

func (e *Executor) saveDigest(r *Rule, cmd string) error {
	d, err := e.actionDigest(r, cmd)
	if err != nil {
		return errcode.Annotatef(err, "digest %q", r.Name)
	}
	return e.saveDigestValue(r.Name, d)
}

func (e *Executor) saveDigestValue(name, digest string) error {
	e.mu.Lock()
	e.digests[name] = digest
	e.mu.Unlock()
	return nil
}
