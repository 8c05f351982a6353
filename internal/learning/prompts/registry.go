package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type entry struct {
	Name       string `yaml:"name"`
	Version    int    `yaml:"version"`
	SchemaName string `yaml:"schema"`
	System     string `yaml:"system"`
	User       string `yaml:"user"`
}

type compiled struct {
	entry
	system *template.Template
	user   *template.Template
}

// Registry holds compiled prompt templates keyed by name.
type Registry struct {
	byName map[string]compiled
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry compiled from the embedded catalog.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(catalogYAML)
	})
	return defaultReg, defaultErr
}

var funcs = template.FuncMap{
	"json": func(v any) string {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	},
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// Load compiles a YAML catalog of the form {prompts: [{name, version, schema, system, user}]}.
func Load(raw []byte) (*Registry, error) {
	var doc struct {
		Prompts []entry `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	r := &Registry{byName: make(map[string]compiled, len(doc.Prompts))}
	for _, e := range doc.Prompts {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("prompt catalog: entry without name")
		}
		if e.Version <= 0 {
			return nil, fmt.Errorf("prompt %s: invalid version %d", name, e.Version)
		}
		if e.SchemaName != "" {
			if _, ok := schemas[e.SchemaName]; !ok {
				return nil, fmt.Errorf("prompt %s: unknown schema %q", name, e.SchemaName)
			}
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("prompt %s: declared twice", name)
		}
		sysT, err := template.New(name + ".system").Funcs(funcs).Option("missingkey=zero").Parse(e.System)
		if err != nil {
			return nil, fmt.Errorf("prompt %s system: %w", name, err)
		}
		userT, err := template.New(name + ".user").Funcs(funcs).Option("missingkey=zero").Parse(e.User)
		if err != nil {
			return nil, fmt.Errorf("prompt %s user: %w", name, err)
		}
		e.Name = name
		r.byName[name] = compiled{entry: e, system: sysT, user: userT}
	}
	return r, nil
}

// Build renders the named prompt with vars.
func (r *Registry) Build(name string, vars map[string]any) (Prompt, error) {
	c, ok := r.byName[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", name)
	}
	render := func(t *template.Template) (string, error) {
		var b bytes.Buffer
		if err := t.Execute(&b, vars); err != nil {
			return "", fmt.Errorf("render %s: %w", t.Name(), err)
		}
		return strings.TrimSpace(b.String()), nil
	}
	sys, err := render(c.system)
	if err != nil {
		return Prompt{}, err
	}
	user, err := render(c.user)
	if err != nil {
		return Prompt{}, err
	}
	p := Prompt{Name: c.Name, Version: c.Version, System: sys, User: user, SchemaName: c.SchemaName}
	if c.SchemaName != "" {
		p.Schema = schemas[c.SchemaName]()
	}
	return p, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}
