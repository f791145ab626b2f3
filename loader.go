package weld

import (
	"shanhu.io/misc/jsonx"
	"shanhu.io/misc/osutil"
	"shanhu.io/text/lexing"
)

const buildFileName = "BUILD.weld"

// loader reads build files, expands each macro declaration, and registers
// the resulting primitive rules into a graph.
type loader struct {
	cfg     *Config
	graph   *Graph
	srcDir  string
	errList *lexing.ErrorList
}

func newLoader(cfg *Config, g *Graph, srcDir string) *loader {
	return &loader{
		cfg:     cfg,
		graph:   g,
		srcDir:  srcDir,
		errList: lexing.NewErrorList(),
	}
}

func (l *loader) readBuildFile(f string) {
	entries, errs := jsonx.ReadSeriesFile(f, makeBuildFileNode)
	if errs != nil {
		l.errList.AddAll(errs)
		return
	}
	for _, entry := range entries {
		rules, err := expandMacro(l.cfg, entry.V)
		if err != nil {
			l.errList.Add(&lexing.Error{Pos: entry.Pos, Err: err})
			continue
		}
		for _, r := range rules {
			if err := l.graph.Add(r); err != nil {
				l.errList.Add(&lexing.Error{Pos: entry.Pos, Err: err})
			}
		}
	}
}

// checkSources verifies that every input that is not a rule reference is a
// regular file under the source directory.
func (l *loader) checkSources() {
	if l.srcDir == "" {
		return
	}
	for _, r := range l.graph.Rules() {
		for _, in := range r.Ins {
			if l.graph.Rule(in) != nil {
				continue
			}
			f := srcPath(l.srcDir, in)
			ok, err := osutil.IsRegular(f)
			if err != nil {
				l.errList.Errorf(nil, "check file %q: %s", f, err)
				continue
			}
			if !ok {
				l.errList.Errorf(
					nil, "cannot resolve %q for rule %q", in, r.Name,
				)
			}
		}
	}
}

func (l *loader) errs() []*lexing.Error { return l.errList.Errs() }

// LoadBuildFile reads a build file, expands its macros and registers every
// emitted rule into the graph. With a non-empty srcDir it also checks that
// plain file inputs exist.
func LoadBuildFile(
	cfg *Config, g *Graph, file, srcDir string,
) []*lexing.Error {
	l := newLoader(cfg, g, srcDir)
	l.readBuildFile(file)
	if errs := l.errs(); errs != nil {
		return errs
	}
	l.checkSources()
	if errs := l.errs(); errs != nil {
		return errs
	}
	if err := g.Check(); err != nil {
		return lexing.SingleErr(err)
	}
	return nil
}
