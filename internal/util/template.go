package util

import (
	"bytes"
	"slices"
	"strings"
	"text/template"
	"text/template/parse"
)

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}

		return v
	},
}

// ParseTemplate parses text with the helper functions available to stage
// instructions. Executing the result fails on keys absent from the data.
func ParseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Funcs(templateFuncs).Parse(text)
}

// RenderTemplate renders text against state.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := ParseTemplate("instruction", text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, state); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// TemplateFields returns the top-level state keys text references, in order
// of first use. Keys referenced inside range or with blocks are relative to
// a different dot and are skipped.
func TemplateFields(text string) ([]string, error) {
	tmpl, err := ParseTemplate("fields", text)
	if err != nil {
		return nil, err
	}

	var fields []string

	if tmpl.Tree != nil {
		collectFields(tmpl.Tree.Root, &fields)
	}

	return fields, nil
}

func collectFields(node parse.Node, fields *[]string) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}

		for _, c := range n.Nodes {
			collectFields(c, fields)
		}
	case *parse.ActionNode:
		collectFields(n.Pipe, fields)
	case *parse.PipeNode:
		if n == nil {
			return
		}

		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				collectFields(arg, fields)
			}
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 && !slices.Contains(*fields, n.Ident[0]) {
			*fields = append(*fields, n.Ident[0])
		}
	case *parse.IfNode:
		collectFields(n.Pipe, fields)
		collectFields(n.List, fields)
		collectFields(n.ElseList, fields)
	case *parse.RangeNode:
		collectFields(n.Pipe, fields)
	case *parse.WithNode:
		collectFields(n.Pipe, fields)
	}
}
