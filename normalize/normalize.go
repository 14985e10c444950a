package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// Sentinel errors for normalization.
var (
	// ErrInvalidQuery indicates the document could not be parsed.
	ErrInvalidQuery = errors.New("normalize: invalid query document")

	// ErrOperationNotFound indicates the requested operation is not in the document.
	ErrOperationNotFound = errors.New("normalize: operation not found")
)

// Options toggles the lossy normalization steps.
type Options struct {
	// RemoveAliases replaces every field alias with the field name.
	RemoveAliases bool

	// HideLiterals replaces inline literal values with zero values.
	HideLiterals bool
}

// Result is a normalized operation.
type Result struct {
	// Operation is the canonical document text.
	Operation string

	// OperationName is the name of the selected operation, or "" if anonymous.
	OperationName string

	// Kind is the operation type: "query", "mutation" or "subscription".
	Kind string

	// Introspection is true when the introspection override was applied.
	Introspection bool
}

// Normalizer normalizes documents with fixed options.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Determinism: same document, operation name and options always yield the same Result.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a normalizer with the given options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize normalizes query. It honors ctx cancellation before doing any work.
func (n *Normalizer) Normalize(ctx context.Context, query, operationName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Normalize(query, operationName, n.opts)
}

// Normalize canonicalizes query for the named operation.
// An empty operationName selects the only operation in the document.
func Normalize(query, operationName string, opts Options) (Result, error) {
	if operationName == IntrospectionOperationName {
		return introspection(), nil
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	op := doc.Operations.ForName(operationName)
	if op == nil {
		if operationName == "" {
			return Result{}, fmt.Errorf("%w: document must name an operation when it has %d", ErrOperationNotFound, len(doc.Operations))
		}
		return Result{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationName)
	}
	if op.Name == IntrospectionOperationName {
		return introspection(), nil
	}

	fragments := reachableFragments(doc, op.SelectionSet)
	out := &ast.QueryDocument{
		Operations: ast.OperationList{op},
		Fragments:  fragments,
	}

	n := normalizer{opts: opts}
	n.operation(op)
	for _, f := range fragments {
		n.fragment(f)
	}
	sort.SliceStable(out.Fragments, func(i, j int) bool {
		return out.Fragments[i].Name < out.Fragments[j].Name
	})

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(out)

	return Result{
		Operation:     strings.TrimSpace(buf.String()),
		OperationName: op.Name,
		Kind:          string(op.Operation),
	}, nil
}

func introspection() Result {
	return Result{
		Operation:     IntrospectionQuery,
		OperationName: IntrospectionOperationName,
		Kind:          string(ast.Query),
		Introspection: true,
	}
}

// reachableFragments returns the fragment definitions reachable from set,
// each once.
func reachableFragments(doc *ast.QueryDocument, set ast.SelectionSet) ast.FragmentDefinitionList {
	seen := make(map[string]bool)
	var out ast.FragmentDefinitionList

	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				walk(s.SelectionSet)
			case *ast.InlineFragment:
				walk(s.SelectionSet)
			case *ast.FragmentSpread:
				if seen[s.Name] {
					continue
				}
				seen[s.Name] = true
				if def := doc.Fragments.ForName(s.Name); def != nil {
					out = append(out, def)
					walk(def.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return out
}

type normalizer struct {
	opts Options
}

func (n normalizer) operation(op *ast.OperationDefinition) {
	for _, v := range op.VariableDefinitions {
		n.value(v.DefaultValue)
		n.directives(v.Directives)
	}
	sort.SliceStable(op.VariableDefinitions, func(i, j int) bool {
		return op.VariableDefinitions[i].Variable < op.VariableDefinitions[j].Variable
	})
	n.directives(op.Directives)
	n.selectionSet(op.SelectionSet)
}

func (n normalizer) fragment(f *ast.FragmentDefinition) {
	n.directives(f.Directives)
	n.selectionSet(f.SelectionSet)
}

func (n normalizer) selectionSet(set ast.SelectionSet) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if n.opts.RemoveAliases {
				s.Alias = s.Name
			}
			n.arguments(s.Arguments)
			n.directives(s.Directives)
			n.selectionSet(s.SelectionSet)
		case *ast.InlineFragment:
			n.directives(s.Directives)
			n.selectionSet(s.SelectionSet)
		case *ast.FragmentSpread:
			n.directives(s.Directives)
		}
	}
	sort.SliceStable(set, func(i, j int) bool {
		ri, ki := selectionKey(set[i])
		rj, kj := selectionKey(set[j])
		if ri != rj {
			return ri < rj
		}
		return ki < kj
	})
}

// selectionKey orders fields, then fragment spreads, then inline fragments.
func selectionKey(sel ast.Selection) (int, string) {
	switch s := sel.(type) {
	case *ast.Field:
		return 0, s.Name + ":" + s.Alias
	case *ast.FragmentSpread:
		return 1, s.Name
	case *ast.InlineFragment:
		return 2, s.TypeCondition
	default:
		return 3, ""
	}
}

func (n normalizer) arguments(args ast.ArgumentList) {
	for _, a := range args {
		n.value(a.Value)
	}
	sort.SliceStable(args, func(i, j int) bool {
		return args[i].Name < args[j].Name
	})
}

func (n normalizer) directives(dirs ast.DirectiveList) {
	for _, d := range dirs {
		n.arguments(d.Arguments)
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		return dirs[i].Name < dirs[j].Name
	})
}

func (n normalizer) value(v *ast.Value) {
	if v == nil {
		return
	}
	if n.opts.HideLiterals {
		hideValue(v)
		return
	}
	sortObjectFields(v)
}

// hideValue replaces literals with zero values. Variables, enums, booleans and
// nulls carry no user data and are kept.
func hideValue(v *ast.Value) {
	if v == nil {
		return
	}
	switch v.Kind {
	case ast.IntValue, ast.FloatValue:
		v.Raw = "0"
	case ast.StringValue, ast.BlockValue:
		v.Kind = ast.StringValue
		v.Raw = ""
	case ast.ListValue:
		for _, c := range v.Children {
			hideValue(c.Value)
		}
	case ast.ObjectValue:
		for _, c := range v.Children {
			hideValue(c.Value)
		}
		sortChildren(v.Children)
	}
}

func sortObjectFields(v *ast.Value) {
	if v == nil {
		return
	}
	for _, c := range v.Children {
		sortObjectFields(c.Value)
	}
	if v.Kind == ast.ObjectValue {
		sortChildren(v.Children)
	}
}

func sortChildren(children ast.ChildValueList) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})
}
