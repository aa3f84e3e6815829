// Package mapping implements the pure payload-to-payload transformation
// engine: field_map and template modes over the JSON value tree produced by
// encoding/json, exactly as the teacher's route loader treats a parsed
// config tree as plain data rather than a bespoke AST.
package mapping

import "time"

// Mode selects how a Mapping's rules are interpreted.
type Mode string

const (
	ModeFieldMap Mode = "field_map"
	ModeTemplate Mode = "template"
)

// SourceTypeHint is editor-assistance metadata only; the engine ignores it.
type SourceTypeHint string

const (
	SourceWhatsApp SourceTypeHint = "whatsapp"
	SourceForms    SourceTypeHint = "forms"
	SourceAds      SourceTypeHint = "ads"
	SourceWebhook  SourceTypeHint = "webhook"
	SourceAny      SourceTypeHint = "any"
)

// Transform names the closed set of value transforms a MappingRule may
// apply. An unrecognized name is a structural mapping error.
type Transform string

const (
	TransformUppercase      Transform = "uppercase"
	TransformLowercase      Transform = "lowercase"
	TransformTrim           Transform = "trim"
	TransformNumber         Transform = "number"
	TransformBoolean        Transform = "boolean"
	TransformString         Transform = "string"
	TransformDateISO        Transform = "date_iso"
	TransformJSONParse      Transform = "json_parse"
	TransformJSONStringify  Transform = "json_stringify"
	TransformArrayFirst     Transform = "array_first"
	TransformArrayLast      Transform = "array_last"
	TransformArrayJoin      Transform = "array_join"
	TransformPhoneClean     Transform = "phone_clean"
	TransformEmailLower     Transform = "email_lower"
)

// ConditionOp is the closed set of boolean DSL operators a rule Condition
// may use.
type ConditionOp string

const (
	ConditionEquals     ConditionOp = "equals"
	ConditionPresent    ConditionOp = "present"
	ConditionNonEmpty   ConditionOp = "non_empty"
)

// Condition gates whether a MappingRule's result is written to the output.
type Condition struct {
	Path  string      `json:"path"`
	Op    ConditionOp `json:"op"`
	Value any         `json:"value,omitempty"`
}

// MappingRule is one field_map entry: resolve source_path, optionally
// default/transform/condition it, then write it to target_path.
type MappingRule struct {
	SourcePath   string     `json:"source_path"`
	TargetPath   string     `json:"target_path"`
	Transform    Transform  `json:"transform,omitempty"`
	DefaultValue any        `json:"default_value,omitempty"`
	Condition    *Condition `json:"condition,omitempty"`
}

// Mapping is a reusable, named transformation belonging to a tenant.
type Mapping struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	Name           string         `json:"name"`
	Mode           Mode           `json:"mode"`
	Rules          []MappingRule  `json:"rules,omitempty"`
	Template       string         `json:"template,omitempty"`
	StaticFields   map[string]any `json:"static_fields,omitempty"`
	PassThrough    bool           `json:"pass_through"`
	SourceTypeHint SourceTypeHint `json:"source_type_hint,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// PartialResult is the engine's only output shape: it never raises an error
// for bad data, only for a structurally invalid Mapping.
type PartialResult struct {
	Output   any
	Warnings []string
}
