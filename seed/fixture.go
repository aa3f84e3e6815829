// Package seed loads a YAML fixture file describing a tenant's
// destinations, mappings, and routes into Postgres for local development
// and integration tests, in the teacher's own routes.Loader shape
// (routes/loader.go): read the whole file, unmarshal into a typed config
// tree with gopkg.in/yaml.v3, validate, then apply.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowenginer/meta-hub/destination"
	"github.com/flowenginer/meta-hub/mapping"
	"github.com/flowenginer/meta-hub/route"
)

// Fixture is the structure of a seed YAML file: one tenant's worth of
// destinations, mappings, and the routes binding them to inbound sources.
// Destinations and mappings are referenced by their Ref within the file,
// not by database id — ids don't exist until Apply creates the rows.
type Fixture struct {
	TenantID     string              `yaml:"tenant_id"`
	Destinations []DestinationConfig `yaml:"destinations"`
	Mappings     []MappingConfig     `yaml:"mappings"`
	Routes       []RouteConfig       `yaml:"routes"`
}

// DestinationConfig is one destinations[] entry. AuthConfig is a flat
// string map rather than destination.AuthConfig directly, so the fixture
// format can use snake_case keys (header_name, api_key) independent of
// that struct's Go field names.
type DestinationConfig struct {
	Ref         string               `yaml:"ref"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	URL         string               `yaml:"url"`
	Method      destination.Method   `yaml:"method"`
	Headers     map[string]string    `yaml:"headers,omitempty"`
	AuthType    destination.AuthType `yaml:"auth_type,omitempty"`
	AuthConfig  map[string]string    `yaml:"auth_config,omitempty"`
	TimeoutMs   int                  `yaml:"timeout_ms,omitempty"`
}

// authConfigFrom maps a fixture's flat auth_config map onto
// destination.AuthConfig's typed fields.
func authConfigFrom(m map[string]string) destination.AuthConfig {
	return destination.AuthConfig{
		Token:      m["token"],
		Username:   m["username"],
		Password:   m["password"],
		HeaderName: m["header_name"],
		APIKey:     m["api_key"],
		Secret:     m["secret"],
	}
}

// MappingConfig is one mappings[] entry.
type MappingConfig struct {
	Ref          string           `yaml:"ref"`
	Name         string           `yaml:"name"`
	Mode         mapping.Mode     `yaml:"mode"`
	Rules        []RuleConfig     `yaml:"rules,omitempty"`
	Template     string           `yaml:"template,omitempty"`
	StaticFields map[string]any   `yaml:"static_fields,omitempty"`
	PassThrough  bool             `yaml:"pass_through,omitempty"`
}

// RuleConfig mirrors mapping.MappingRule with yaml tags, since
// MappingRule's own tags are json-only.
type RuleConfig struct {
	SourcePath   string            `yaml:"source_path"`
	TargetPath   string            `yaml:"target_path"`
	Transform    mapping.Transform `yaml:"transform,omitempty"`
	DefaultValue any               `yaml:"default_value,omitempty"`
	Condition    *ConditionConfig  `yaml:"condition,omitempty"`
}

// ConditionConfig mirrors mapping.Condition with yaml tags.
type ConditionConfig struct {
	Path  string              `yaml:"path"`
	Op    mapping.ConditionOp `yaml:"op"`
	Value any                 `yaml:"value,omitempty"`
}

func (c RuleConfig) toMappingRule() mapping.MappingRule {
	r := mapping.MappingRule{
		SourcePath:   c.SourcePath,
		TargetPath:   c.TargetPath,
		Transform:    c.Transform,
		DefaultValue: c.DefaultValue,
	}
	if c.Condition != nil {
		r.Condition = &mapping.Condition{
			Path:  c.Condition.Path,
			Op:    c.Condition.Op,
			Value: c.Condition.Value,
		}
	}
	return r
}

// RouteConfig is one routes[] entry.
type RouteConfig struct {
	Label            string             `yaml:"label,omitempty"`
	SourceType       string             `yaml:"source_type"`
	SourceID         string             `yaml:"source_id,omitempty"`
	DestinationRef   string             `yaml:"destination_ref"`
	MappingRef       string             `yaml:"mapping_ref,omitempty"`
	FilterEventTypes []string           `yaml:"filter_event_types,omitempty"`
	Priority         int                `yaml:"priority,omitempty"`
}

// Load reads and parses a fixture file, validating referential integrity
// (every destination_ref/mapping_ref resolves to a declared ref) before
// handing it to Apply.
func Load(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("reading fixture file: %w", err)
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parsing fixture YAML: %w", err)
	}

	if err := f.validate(); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

func (f Fixture) validate() error {
	if f.TenantID == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}

	destRefs := make(map[string]bool, len(f.Destinations))
	for _, d := range f.Destinations {
		if d.Ref == "" {
			return fmt.Errorf("destination entry missing ref")
		}
		if d.URL == "" {
			return fmt.Errorf("destination %q missing url", d.Ref)
		}
		destRefs[d.Ref] = true
	}

	mappingRefs := make(map[string]bool, len(f.Mappings))
	for _, m := range f.Mappings {
		if m.Ref == "" {
			return fmt.Errorf("mapping entry missing ref")
		}
		mappingRefs[m.Ref] = true
	}

	for i, r := range f.Routes {
		if r.SourceType == "" {
			return fmt.Errorf("route[%d] missing source_type", i)
		}
		if !destRefs[r.DestinationRef] {
			return fmt.Errorf("route[%d] references undeclared destination_ref %q", i, r.DestinationRef)
		}
		if r.MappingRef != "" && !mappingRefs[r.MappingRef] {
			return fmt.Errorf("route[%d] references undeclared mapping_ref %q", i, r.MappingRef)
		}
	}
	return nil
}

// filterRulesFrom builds a route.FilterRules from the config's raw event
// type strings, or nil when none were given — matching route.FilterRules'
// own "nil means accept all" contract.
func filterRulesFrom(eventTypes []string) *route.FilterRules {
	if len(eventTypes) == 0 {
		return nil
	}
	out := make([]route.WhatsAppEventType, len(eventTypes))
	for i, t := range eventTypes {
		out[i] = route.WhatsAppEventType(t)
	}
	return &route.FilterRules{EventTypes: out}
}
