package overlay

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"text/template"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// ValidationError describes one invalid overlay field.
type ValidationError struct {
	Overlay string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("overlay %q: %s: %s", e.Overlay, e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// compiled is a validated definition ready for evaluation.
type compiled struct {
	def        Definition
	weightKeys []string    // sorted, so scores sum in a fixed order
	thresholds []Threshold // sorted by cutoff, descending
	rules      []cel.Program
	ruleKeys   []string // signal keys named by the rules
	tmpl       *template.Template
}

// Table is an immutable, validated set of overlays.
type Table struct {
	order   []string
	byName  map[string]*compiled
	layers  [][]string
	workers int
}

// File is the on-disk shape of an overlay table.
type File struct {
	Overlays []Definition `yaml:"overlays"`
}

// LoadTable reads a YAML overlay table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay table: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse overlay table: %w", err)
	}
	return NewTable(f.Overlays)
}

// NewTable validates defs and compiles their rules and templates. All
// problems are reported together as ValidationErrors.
func NewTable(defs []Definition) (*Table, error) {
	env, err := newRuleEnv()
	if err != nil {
		return nil, err
	}

	t := &Table{
		byName:  make(map[string]*compiled, len(defs)),
		workers: runtime.GOMAXPROCS(0),
	}
	var errs ValidationErrors

	for i, d := range defs {
		if d.Name == "" {
			errs = append(errs, ValidationError{
				Overlay: fmt.Sprintf("#%d", i),
				Field:   "name",
				Message: "name is required",
			})
			continue
		}
		if _, dup := t.byName[d.Name]; dup {
			errs = append(errs, ValidationError{Overlay: d.Name, Field: "name", Message: "duplicate name"})
			continue
		}
		c, cerrs := compile(env, d)
		errs = append(errs, cerrs...)
		t.byName[d.Name] = c
		t.order = append(t.order, d.Name)
	}

	for _, name := range t.order {
		for _, dep := range t.byName[name].def.DependsOn {
			if _, ok := t.byName[dep]; !ok {
				errs = append(errs, ValidationError{
					Overlay: name,
					Field:   "depends_on",
					Message: fmt.Sprintf("unknown overlay %q", dep),
				})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	layers, err := t.layer()
	if err != nil {
		return nil, err
	}
	t.layers = layers
	return t, nil
}

func compile(env *cel.Env, d Definition) (*compiled, ValidationErrors) {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Overlay: d.Name, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	c := &compiled{def: d}

	if !d.Kind.valid() {
		add("kind", "unknown kind %q", d.Kind)
	}

	for k, w := range d.Weights {
		c.weightKeys = append(c.weightKeys, k)
		if !IsSignalName(k) {
			add("weights", "unknown signal %q", k)
		}
		if w < 0 {
			add("weights", "weight for %q is negative", k)
		}
	}

	sort.Strings(c.weightKeys)

	c.thresholds = append([]Threshold(nil), d.Thresholds...)
	sort.SliceStable(c.thresholds, func(i, j int) bool {
		return c.thresholds[i].Cutoff > c.thresholds[j].Cutoff
	})
	seen := make(map[float64]bool, len(c.thresholds))
	for _, th := range c.thresholds {
		if seen[th.Cutoff] {
			add("thresholds", "duplicate cutoff %v", th.Cutoff)
		}
		seen[th.Cutoff] = true
		if th.Label == "" {
			add("thresholds", "cutoff %v has no label", th.Cutoff)
		}
	}
	if d.Kind == KindTiered {
		if len(c.thresholds) == 0 {
			add("thresholds", "tiered overlay needs thresholds")
		} else if floor := c.thresholds[len(c.thresholds)-1].Cutoff; floor > 0 {
			add("thresholds", "lowest cutoff %v must be <= 0", floor)
		}
	}

	if d.Kind == KindRules && len(d.Rules) == 0 {
		add("rules", "rules overlay needs at least one rule")
	}
	for i, r := range d.Rules {
		prg, keys, err := compileRule(env, r.When)
		if err != nil {
			add(fmt.Sprintf("rules[%d]", i), "%v", err)
			continue
		}
		if r.Label == "" {
			add(fmt.Sprintf("rules[%d]", i), "label is required")
		}
		for _, k := range keys {
			if !IsSignalName(k) {
				add(fmt.Sprintf("rules[%d]", i), "unknown signal %q", k)
			}
		}
		c.rules = append(c.rules, prg)
		c.ruleKeys = append(c.ruleKeys, keys...)
	}

	if d.Kind == KindNarrative && strings.TrimSpace(d.Template) == "" {
		add("template", "narrative overlay needs a template")
	}
	if d.Template != "" {
		tmpl, err := template.New(d.Name).
			Funcs(templateFuncs).
			Option("missingkey=zero").
			Parse(d.Template)
		if err != nil {
			add("template", "%v", err)
		}
		c.tmpl = tmpl
	}

	for _, dep := range d.DependsOn {
		if dep == d.Name {
			add("depends_on", "overlay depends on itself")
		}
	}
	return c, errs
}

// layer groups overlays so that every overlay comes after its
// dependencies. Table order is kept within a layer.
func (t *Table) layer() ([][]string, error) {
	depth := make(map[string]int, len(t.order))
	const visiting = -1

	var visit func(name string, path []string) (int, error)
	visit = func(name string, path []string) (int, error) {
		switch d, ok := depth[name]; {
		case ok && d == visiting:
			return 0, ValidationErrors{{
				Overlay: name,
				Field:   "depends_on",
				Message: "dependency cycle: " + strings.Join(append(path, name), " -> "),
			}}
		case ok:
			return d, nil
		}
		depth[name] = visiting
		path = append(append([]string(nil), path...), name)
		d := 0
		for _, dep := range t.byName[name].def.DependsOn {
			dd, err := visit(dep, path)
			if err != nil {
				return 0, err
			}
			if dd+1 > d {
				d = dd + 1
			}
		}
		depth[name] = d
		return d, nil
	}

	var layers [][]string
	for _, name := range t.order {
		d, err := visit(name, nil)
		if err != nil {
			return nil, err
		}
		for len(layers) <= d {
			layers = append(layers, nil)
		}
	}
	for _, name := range t.order {
		d := depth[name]
		layers[d] = append(layers[d], name)
	}
	return layers, nil
}

func (t *Table) ruleKeys() []string {
	var keys []string
	for _, name := range t.order {
		keys = append(keys, t.byName[name].ruleKeys...)
	}
	return keys
}

// Names returns the overlay names in table order.
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of overlays.
func (t *Table) Len() int { return len(t.order) }

// Definition returns the definition of the named overlay.
func (t *Table) Definition(name string) (Definition, bool) {
	c, ok := t.byName[name]
	if !ok {
		return Definition{}, false
	}
	return c.def, true
}

// WithWorkers returns a copy of t evaluating at most n overlays of a layer
// concurrently. n < 1 means GOMAXPROCS.
func (t *Table) WithWorkers(n int) *Table {
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	cp := *t
	cp.workers = n
	return &cp
}

// Select returns a table holding only the named overlays and their
// transitive dependencies, in the original table order. An empty
// selection returns t.
func (t *Table) Select(names []string) (*Table, error) {
	if len(names) == 0 {
		return t, nil
	}

	keep := make(map[string]bool)
	var mark func(string)
	mark = func(name string) {
		if keep[name] {
			return
		}
		keep[name] = true
		for _, dep := range t.byName[name].def.DependsOn {
			mark(dep)
		}
	}

	var errs ValidationErrors
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := t.byName[n]; !ok {
			errs = append(errs, ValidationError{Overlay: n, Field: "select", Message: "unknown overlay"})
			continue
		}
		mark(n)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	sub := &Table{byName: make(map[string]*compiled, len(keep)), workers: t.workers}
	for _, name := range t.order {
		if keep[name] {
			sub.order = append(sub.order, name)
			sub.byName[name] = t.byName[name]
		}
	}
	layers, err := sub.layer()
	if err != nil {
		return nil, err
	}
	sub.layers = layers
	return sub, nil
}
