package overlay

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"golang.org/x/sync/errgroup"
)

// Rules see the full signal map as `signals` and each base signal as a
// top-level int, so both `metadata > 0` and
// `signals["behaviour.coercion"] > 0` are valid.
func newRuleEnv() (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable("signals", cel.MapType(cel.StringType, cel.IntType)),
	}
	for _, name := range baseSignals {
		opts = append(opts, cel.Variable(name, cel.IntType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return env, nil
}

// compileRule compiles expr and returns the signal keys it names
// literally, as in signals["behaviour.greed"] or signals.risk.
func compileRule(env *cel.Env, expr string) (cel.Program, []string, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil, fmt.Errorf("empty expression")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, nil, fmt.Errorf("expression yields %s, want bool", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, nil, fmt.Errorf("CEL program error: %w", err)
	}
	return prg, signalRefs(ast), nil
}

func signalRefs(a *cel.Ast) []string {
	var keys []string
	root := celast.NavigateAST(a.NativeRep())
	for _, e := range celast.MatchDescendants(root, celast.AllMatcher()) {
		switch e.Kind() {
		case celast.CallKind:
			call := e.AsCall()
			args := call.Args()
			if call.FunctionName() != operators.Index || len(args) != 2 || !isSignalsIdent(args[0]) {
				continue
			}
			if args[1].Kind() != celast.LiteralKind {
				continue
			}
			if key, ok := args[1].AsLiteral().(types.String); ok {
				keys = append(keys, string(key))
			}
		case celast.SelectKind:
			// has(signals.x) tests presence and must see the real map
			sel := e.AsSelect()
			if !sel.IsTestOnly() && isSignalsIdent(sel.Operand()) {
				keys = append(keys, sel.FieldName())
			}
		}
	}
	return keys
}

func isSignalsIdent(e celast.Expr) bool {
	return e.Kind() == celast.IdentKind && e.AsIdent() == "signals"
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// templateData is what a template sees.
type templateData struct {
	Name    string
	Score   float64
	Label   string
	Items   []string
	Signals Signals
	Refs    map[string]View
}

// Evaluate computes every overlay of t against signals. Overlays in the
// same dependency layer run concurrently; a failure in one overlay is
// recorded in its View and never affects the others.
func (t *Table) Evaluate(signals Signals) map[string]View {
	activation := newActivation(signals, t.ruleKeys())
	views := make(map[string]View, len(t.order))

	for _, layer := range t.layers {
		out := make([]View, len(layer))

		var g errgroup.Group
		g.SetLimit(t.workers)
		for i, name := range layer {
			c := t.byName[name]
			refs := make(map[string]View, len(c.def.DependsOn))
			for _, dep := range c.def.DependsOn {
				refs[dep] = views[dep]
			}
			g.Go(func() error {
				out[i] = c.evaluate(signals, activation, refs)
				return nil
			})
		}
		_ = g.Wait()

		for i, name := range layer {
			views[name] = out[i]
		}
	}
	return views
}

// EvaluateOrdered returns the views of Evaluate in table order.
func (t *Table) EvaluateOrdered(signals Signals) []View {
	views := t.Evaluate(signals)
	out := make([]View, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, views[name])
	}
	return out
}

// newActivation exposes signals to rules. Keys a rule names but signals
// lacks read as zero.
func newActivation(signals Signals, keys []string) map[string]any {
	m := make(map[string]int64, len(signals)+len(keys))
	for _, k := range keys {
		m[k] = 0
	}
	for k, v := range signals {
		m[k] = int64(v)
	}
	act := map[string]any{"signals": m}
	for _, name := range baseSignals {
		act[name] = int64(signals[name])
	}
	return act
}

func (c *compiled) evaluate(signals Signals, activation map[string]any, refs map[string]View) View {
	v := View{
		Name:  c.def.Name,
		Kind:  c.def.Kind,
		Items: []string{},
	}

	for _, sig := range c.weightKeys {
		v.Score += float64(signals[sig]) * c.def.Weights[sig]
	}
	for _, th := range c.thresholds {
		if v.Score >= th.Cutoff {
			v.Label = th.Label
			break
		}
	}

	var errs []string
	for i, prg := range c.rules {
		out, _, err := prg.Eval(activation)
		if err != nil {
			// Missing per-type keys land here; the rule simply does not hold.
			errs = append(errs, fmt.Sprintf("rules[%d]: %v", i, err))
			continue
		}
		if ok, _ := out.Value().(bool); ok {
			v.Items = append(v.Items, c.def.Rules[i].Label)
			if c.def.FirstMatch {
				break
			}
		}
	}
	if len(v.Items) == 0 && c.def.Fallback != "" {
		v.Items = append(v.Items, c.def.Fallback)
	}
	if c.def.Kind == KindRules && v.Label == "" && len(v.Items) > 0 {
		v.Label = v.Items[0]
	}

	if c.tmpl != nil {
		var sb strings.Builder
		err := c.tmpl.Execute(&sb, templateData{
			Name:    v.Name,
			Score:   v.Score,
			Label:   v.Label,
			Items:   v.Items,
			Signals: signals,
			Refs:    refs,
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("template: %v", err))
		} else {
			v.Text = strings.TrimSpace(sb.String())
		}
	}

	if len(errs) > 0 {
		v.Error = strings.Join(errs, "; ")
	}
	return v
}
