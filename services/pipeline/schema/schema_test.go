// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Normalize
// ============================================================================

func TestNormalize_SpellingVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{"JiraTrigger", TypeJiraTrigger},
		{"jira_trigger", TypeJiraTrigger},
		{"jiraTrigger", TypeJiraTrigger},
		{"CIWait", TypeCIWait},
		{"CiWait", TypeCIWait},
		{"ci-wait", TypeCIWait},
		{"CWait", TypeCIWait},
		{"CreateMR", TypeCreateMR},
		{"create_mr", TypeCreateMR},
		{"PlanPatch", TypePlanPatch},
		{"Deploy", TypeDeploy},
		{"deploy", TypeDeploy},
		{"QA", TypeQA},
		{"qa", TypeQA},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			require.True(t, ok, "expected %q to normalize", tt.raw)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_UnknownType(t *testing.T) {
	for _, raw := range []string{"", "Bogus", "deployx", "jira trigger extra"} {
		_, ok := Normalize(raw)
		assert.False(t, ok, "expected %q to be unrecognized", raw)
	}
}

// ============================================================================
// Defaults
// ============================================================================

func TestDefaults_PerType(t *testing.T) {
	assert.Equal(t, map[string]any{
		"branchPattern": "feature/{JIRA}",
		"targetBranch":  "master",
	}, Defaults(TypeCreateMR))

	assert.Equal(t, map[string]any{
		"scope":      "modules/custom",
		"guardrails": true,
		"dryRun":     true,
	}, Defaults(TypePlanPatch))

	assert.Equal(t, map[string]any{
		"timeoutSec": 900,
		"pollSec":    10,
	}, Defaults(TypeCIWait))

	assert.Equal(t, map[string]any{
		"environment":  "stg",
		"safetyChecks": true,
	}, Defaults(TypeDeploy))

	assert.Empty(t, Defaults(TypeJiraTrigger))
	assert.Empty(t, Defaults(TypeQA))
}

func TestDefaults_ReturnsFreshMap(t *testing.T) {
	first := Defaults(TypeCIWait)
	first["timeoutSec"] = 1
	second := Defaults(TypeCIWait)
	assert.Equal(t, 900, second["timeoutSec"])
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate_CIWaitBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		timeout int
		wantOK  bool
	}{
		{"below minimum", 29, false},
		{"at minimum", 30, true},
		{"at maximum", 3600, true},
		{"above maximum", 3601, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]any{"timeoutSec": tt.timeout}
			effective, ferrs := Validate(TypeCIWait, data)
			if tt.wantOK {
				require.Nil(t, ferrs)
				assert.Equal(t, tt.timeout, effective["timeoutSec"])
				// pollSec comes from defaults
				assert.Equal(t, 10, effective["pollSec"])
			} else {
				require.NotNil(t, ferrs)
				assert.Contains(t, ferrs, "timeoutSec")
			}
		})
	}
}

func TestValidate_DefaultsMakeFreshNodeValid(t *testing.T) {
	// Types whose contracts are satisfiable from defaults alone.
	for _, typ := range []Type{TypeCreateMR, TypePlanPatch, TypeCIWait, TypeDeploy, TypeQA} {
		_, ferrs := Validate(typ, nil)
		assert.Nil(t, ferrs, "type %s should validate from defaults alone", typ)
	}

	// JiraTrigger needs its one required field.
	_, ferrs := Validate(TypeJiraTrigger, nil)
	require.NotNil(t, ferrs)
	assert.Contains(t, ferrs, "projectKey")

	_, ferrs = Validate(TypeJiraTrigger, map[string]any{"projectKey": "CCS"})
	assert.Nil(t, ferrs)
}

func TestValidate_DeployEnvironmentEnum(t *testing.T) {
	for _, env := range []string{"dev", "stg", "prod"} {
		_, ferrs := Validate(TypeDeploy, map[string]any{"environment": env})
		assert.Nil(t, ferrs, "environment %q should be accepted", env)
	}

	_, ferrs := Validate(TypeDeploy, map[string]any{"environment": "production"})
	require.NotNil(t, ferrs)
	assert.Contains(t, ferrs, "environment")
}

func TestValidate_PlanPatchScopeEnum(t *testing.T) {
	_, ferrs := Validate(TypePlanPatch, map[string]any{"scope": "repo"})
	assert.Nil(t, ferrs)

	_, ferrs = Validate(TypePlanPatch, map[string]any{"scope": "vendor"})
	require.NotNil(t, ferrs)
	assert.Contains(t, ferrs, "scope")
}

func TestValidate_IgnoresUniversalFields(t *testing.T) {
	data := map[string]any{
		"projectKey": "CCS-7",
		"label":      "Intake",
		"profileId":  "3",
	}
	effective, ferrs := Validate(TypeJiraTrigger, data)
	require.Nil(t, ferrs)
	// Universal fields survive in the effective data untouched.
	assert.Equal(t, "Intake", effective["label"])
	assert.Equal(t, "3", effective["profileId"])
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	data := map[string]any{"timeoutSec": 60}
	_, ferrs := Validate(TypeCIWait, data)
	require.Nil(t, ferrs)
	assert.Equal(t, map[string]any{"timeoutSec": 60}, data)
}

func TestValidate_WrongFieldType(t *testing.T) {
	_, ferrs := Validate(TypeCIWait, map[string]any{"timeoutSec": "soon"})
	require.NotNil(t, ferrs)
	assert.Contains(t, ferrs, "timeoutSec")
}

func TestValidate_UnknownType(t *testing.T) {
	_, ferrs := Validate(Type("Bogus"), nil)
	require.NotNil(t, ferrs)
	assert.Contains(t, ferrs, "type")
}

func TestFieldErrors_ErrorIsStable(t *testing.T) {
	fe := FieldErrors{"b": "is required", "a": "must be at least 3"}
	assert.Equal(t, "a: must be at least 3; b: is required", fe.Error())
}
