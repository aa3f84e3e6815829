package mapping_test

import (
	"encoding/json"
	"testing"

	"github.com/flowenginer/meta-hub/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestApply_FieldMap(t *testing.T) {
	payload := decode(t, `{
		"contact": {"name": "Jane Doe ", "phone": "+1 (555) 123-4567"},
		"email": "JANE@EXAMPLE.COM",
		"created": "2024-01-15T10:30:00Z",
		"tags": ["vip", "lead"]
	}`)

	t.Run("resolves, transforms and writes rules in order", func(t *testing.T) {
		m := mapping.Mapping{
			Mode: mapping.ModeFieldMap,
			Rules: []mapping.MappingRule{
				{SourcePath: "contact.name", TargetPath: "name", Transform: mapping.TransformTrim},
				{SourcePath: "contact.phone", TargetPath: "phone", Transform: mapping.TransformPhoneClean},
				{SourcePath: "email", TargetPath: "email", Transform: mapping.TransformEmailLower},
				{SourcePath: "tags", TargetPath: "primary_tag", Transform: mapping.TransformArrayFirst},
			},
		}

		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)

		out, ok := result.Output.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Jane Doe", out["name"])
		assert.Equal(t, "+15551234567", out["phone"])
		assert.Equal(t, "jane@example.com", out["email"])
		assert.Equal(t, "vip", out["primary_tag"])
	})

	t.Run("missing source with no default skips the rule", func(t *testing.T) {
		m := mapping.Mapping{
			Mode: mapping.ModeFieldMap,
			Rules: []mapping.MappingRule{
				{SourcePath: "contact.missing", TargetPath: "x"},
			},
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out := result.Output.(map[string]any)
		_, exists := out["x"]
		assert.False(t, exists)
	})

	t.Run("missing source with default uses default", func(t *testing.T) {
		m := mapping.Mapping{
			Mode: mapping.ModeFieldMap,
			Rules: []mapping.MappingRule{
				{SourcePath: "contact.missing", TargetPath: "x", DefaultValue: "fallback"},
			},
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out := result.Output.(map[string]any)
		assert.Equal(t, "fallback", out["x"])
	})

	t.Run("condition gates whether the rule writes", func(t *testing.T) {
		m := mapping.Mapping{
			Mode: mapping.ModeFieldMap,
			Rules: []mapping.MappingRule{
				{
					SourcePath: "email",
					TargetPath: "email",
					Condition:  &mapping.Condition{Path: "contact.name", Op: mapping.ConditionPresent},
				},
				{
					SourcePath: "email",
					TargetPath: "should_not_exist",
					Condition:  &mapping.Condition{Path: "contact.nonexistent", Op: mapping.ConditionPresent},
				},
			},
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out := result.Output.(map[string]any)
		assert.Contains(t, out, "email")
		assert.NotContains(t, out, "should_not_exist")
	})

	t.Run("static fields win over computed by default", func(t *testing.T) {
		m := mapping.Mapping{
			Mode:         mapping.ModeFieldMap,
			Rules:        []mapping.MappingRule{{SourcePath: "email", TargetPath: "source", DefaultValue: "computed"}},
			StaticFields: map[string]any{"source": "static"},
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out := result.Output.(map[string]any)
		assert.Equal(t, "static", out["source"])
	})

	t.Run("pass_through keeps computed over static", func(t *testing.T) {
		m := mapping.Mapping{
			Mode:         mapping.ModeFieldMap,
			PassThrough:  true,
			StaticFields: map[string]any{"email": "static@example.com"},
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out := result.Output.(map[string]any)
		assert.Equal(t, "JANE@EXAMPLE.COM", out["email"])
	})

	t.Run("unrecognized transform is a structural error", func(t *testing.T) {
		m := mapping.Mapping{
			Mode:  mapping.ModeFieldMap,
			Rules: []mapping.MappingRule{{SourcePath: "email", TargetPath: "x", Transform: "not_a_real_transform"}},
		}
		_, err := mapping.Apply(m, payload)
		assert.Error(t, err)
	})

	t.Run("date_iso normalizes an RFC3339 timestamp to UTC", func(t *testing.T) {
		m := mapping.Mapping{
			Mode: mapping.ModeFieldMap,
			Rules: []mapping.MappingRule{
				{SourcePath: "created", TargetPath: "created_iso", Transform: mapping.TransformDateISO},
			},
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out := result.Output.(map[string]any)
		assert.Equal(t, "2024-01-15T10:30:00Z", out["created_iso"])
	})
}

func TestApply_Template(t *testing.T) {
	payload := decode(t, `{"name": "Jane", "score": 42}`)

	t.Run("substitutes placeholders with stringified values", func(t *testing.T) {
		m := mapping.Mapping{
			Mode:     mapping.ModeTemplate,
			Template: `{"greeting": "hello {{name}}", "score": {{score}}}`,
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		out, ok := result.Output.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello Jane", out["greeting"])
	})

	t.Run("non-JSON output stays a plain string", func(t *testing.T) {
		m := mapping.Mapping{
			Mode:     mapping.ModeTemplate,
			Template: "Hello {{name}}, your score is {{score}}",
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		assert.Equal(t, "Hello Jane, your score is 42", result.Output)
	})

	t.Run("missing placeholder renders empty string", func(t *testing.T) {
		m := mapping.Mapping{
			Mode:     mapping.ModeTemplate,
			Template: "value={{missing.path}}",
		}
		result, err := mapping.Apply(m, payload)
		require.NoError(t, err)
		assert.Equal(t, "value=", result.Output)
	})
}

func TestApply_Determinism(t *testing.T) {
	payload := decode(t, `{"a": 1, "b": "x"}`)
	m := mapping.Mapping{
		Mode:  mapping.ModeFieldMap,
		Rules: []mapping.MappingRule{{SourcePath: "a", TargetPath: "out.a"}, {SourcePath: "b", TargetPath: "out.b"}},
	}

	r1, err1 := mapping.Apply(m, payload)
	r2, err2 := mapping.Apply(m, payload)
	require.NoError(t, err1)
	require.NoError(t, err2)

	b1, _ := json.Marshal(r1.Output)
	b2, _ := json.Marshal(r2.Output)
	assert.Equal(t, string(b1), string(b2))
}
