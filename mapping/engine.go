package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowenginer/meta-hub/jsonval"
)

// Apply runs mapping against payload with no I/O and no shared state: given
// the same mapping and payload it returns a byte-identical PartialResult
// every time. It never returns an error for bad field data — only a
// structurally invalid Mapping (an unknown transform/condition op, or a
// template used outside ModeTemplate) fails the call outright.
func Apply(m Mapping, payload any) (PartialResult, error) {
	switch m.Mode {
	case ModeFieldMap:
		if m.Template != "" {
			return PartialResult{}, fmt.Errorf("mapping: template set on a %q mapping", ModeFieldMap)
		}
		return applyFieldMap(m, payload)
	case ModeTemplate:
		return applyTemplate(m, payload)
	default:
		return PartialResult{}, fmt.Errorf("mapping: unrecognized mode %q", m.Mode)
	}
}

func applyFieldMap(m Mapping, payload any) (PartialResult, error) {
	output := map[string]any{}
	if m.PassThrough {
		if obj, ok := payload.(map[string]any); ok {
			for k, v := range obj {
				output[k] = v
			}
		}
	}

	var warnings []string
	for i, rule := range m.Rules {
		resolved := jsonval.Get(payload, rule.SourcePath)
		if jsonval.IsAbsent(resolved) {
			if rule.DefaultValue != nil {
				resolved = rule.DefaultValue
			} else {
				continue
			}
		}

		if rule.Transform != "" {
			if !isKnownTransform(rule.Transform) {
				return PartialResult{}, fmt.Errorf("mapping: rule %d: unrecognized transform %q", i, rule.Transform)
			}
			transformed := applyTransform(rule.Transform, resolved)
			if jsonval.IsAbsent(transformed) {
				if rule.DefaultValue != nil {
					transformed = rule.DefaultValue
				} else {
					warnings = append(warnings, fmt.Sprintf("rule %d: transform %q produced no value for %q, skipped", i, rule.Transform, rule.SourcePath))
					continue
				}
			}
			resolved = transformed
		}

		if rule.Condition != nil {
			ok, err := evaluateCondition(rule.Condition, payload)
			if err != nil {
				return PartialResult{}, fmt.Errorf("mapping: rule %d: %w", i, err)
			}
			if !ok {
				continue
			}
		}

		jsonval.Set(output, rule.TargetPath, resolved)
	}

	// static wins over computed, except under pass_through where computed wins.
	for k, v := range m.StaticFields {
		if m.PassThrough {
			if _, exists := output[k]; exists {
				continue
			}
		}
		output[k] = v
	}

	return PartialResult{Output: output, Warnings: warnings}, nil
}

func isKnownTransform(t Transform) bool {
	switch t {
	case TransformUppercase, TransformLowercase, TransformTrim, TransformNumber,
		TransformBoolean, TransformString, TransformDateISO, TransformJSONParse,
		TransformJSONStringify, TransformArrayFirst, TransformArrayLast,
		TransformArrayJoin, TransformPhoneClean, TransformEmailLower:
		return true
	default:
		return false
	}
}

func applyTemplate(m Mapping, payload any) (PartialResult, error) {
	rendered := renderTemplate(m.Template, payload)

	var parsed any
	parsesAsJSON := false
	if err := json.Unmarshal([]byte(rendered), &parsed); err == nil {
		parsesAsJSON = true
	}

	if !parsesAsJSON {
		return PartialResult{Output: rendered}, nil
	}

	if len(m.StaticFields) > 0 {
		if obj, ok := parsed.(map[string]any); ok {
			for k, v := range m.StaticFields {
				obj[k] = v
			}
			parsed = obj
		}
		// static_fields are ignored when the template output isn't an object.
	}

	return PartialResult{Output: parsed}, nil
}

// renderTemplate replaces every {{path}} placeholder with the stringified
// resolved value of path against payload, empty string when absent.
func renderTemplate(tmpl string, payload any) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])
		path := strings.TrimSpace(rest[start+2 : end])
		resolved := jsonval.Get(payload, path)
		b.WriteString(jsonval.String(resolved))
		rest = rest[end+2:]
	}
	return b.String()
}
