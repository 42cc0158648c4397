package parser

import (
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// builtinAdapters can be referenced by rules without being declared
var builtinAdapters = map[string]bool{
	"direct": true,
	"reject": true,
}

// ParseError describes why a tunnel config was rejected
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", model.ErrInvalidConfig, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %v", model.ErrInvalidConfig, e.Reason, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{model.ErrInvalidConfig}
	}
	return []error{model.ErrInvalidConfig, e.Err}
}

// tunnelDocument is the typed view used for cross-reference checks
type tunnelDocument struct {
	Port    int `yaml:"port"`
	Adapter []struct {
		ID   string `yaml:"id"`
		Type string `yaml:"type"`
	} `yaml:"adapter"`
	Rule []struct {
		Type    string `yaml:"type"`
		Adapter string `yaml:"adapter"`
	} `yaml:"rule"`
}

// YAMLParser validates YAML tunnel configs against a CUE schema
type YAMLParser struct {
	// a cue.Context is not safe for concurrent use
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewYAMLParser compiles the tunnel schema
func NewYAMLParser() (*YAMLParser, error) {
	ctx := cuecontext.New()
	compiled := ctx.CompileString(schemaSource, cue.Filename("tunnel.cue"))
	if err := compiled.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile tunnel schema: %w", err)
	}
	schema := compiled.LookupPath(cue.ParsePath("#Tunnel"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("tunnel schema has no #Tunnel definition: %w", err)
	}
	return &YAMLParser{ctx: ctx, schema: schema}, nil
}

// Validate checks syntax, schema and adapter references of a tunnel config
func (p *YAMLParser) Validate(text []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return &ParseError{Reason: "malformed YAML", Err: err}
	}
	if len(doc) == 0 {
		return &ParseError{Reason: "empty configuration"}
	}

	if err := p.validateSchema(doc); err != nil {
		return &ParseError{Reason: "schema violation", Err: err}
	}

	var typed tunnelDocument
	if err := yaml.Unmarshal(text, &typed); err != nil {
		return &ParseError{Reason: "malformed YAML", Err: err}
	}
	return checkReferences(typed)
}

func (p *YAMLParser) validateSchema(doc map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	value := p.ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return err
	}
	return p.schema.Unify(value).Validate(cue.Concrete(true))
}

func checkReferences(doc tunnelDocument) error {
	declared := make(map[string]bool, len(doc.Adapter))
	for _, adapter := range doc.Adapter {
		if declared[adapter.ID] {
			return &ParseError{Reason: fmt.Sprintf("adapter %q declared twice", adapter.ID)}
		}
		declared[adapter.ID] = true
	}

	var errs []error
	for i, rule := range doc.Rule {
		if rule.Adapter == "" || declared[rule.Adapter] || builtinAdapters[rule.Adapter] {
			continue
		}
		errs = append(errs, fmt.Errorf("rule %d references unknown adapter %q", i, rule.Adapter))
	}
	if len(errs) > 0 {
		return &ParseError{Reason: "unresolved adapter reference", Err: errors.Join(errs...)}
	}
	return nil
}

// Ensure YAMLParser implements port.ConfigParser
var _ port.ConfigParser = (*YAMLParser)(nil)
