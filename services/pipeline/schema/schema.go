// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package schema defines the canonical stage types of a release pipeline
// and validates each stage's configuration payload.
//
// # Description
//
// Every pipeline node carries a type tag and a free-form data map. This
// package maps each canonical tag to a typed field contract, normalizes
// the spelling variants older clients produced ("CiWait", "jira_trigger"),
// and validates a data map against the contract for its type.
//
// Validation is pure: the input map is never mutated, and no I/O happens.
// Field contracts are encoded as go-playground/validator struct tags on
// one config struct per type.
//
// # Thread Safety
//
// The registry is immutable after package init and safe for concurrent use.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Canonical Types
// =============================================================================

// Type is the canonical tag identifying a stage's behavior and schema.
type Type string

const (
	// TypeJiraTrigger starts a pipeline from a Jira issue.
	TypeJiraTrigger Type = "JiraTrigger"

	// TypeCreateMR creates a branch and merge request.
	TypeCreateMR Type = "CreateMR"

	// TypePlanPatch plans an AI-generated patch over the codebase.
	TypePlanPatch Type = "PlanPatch"

	// TypeCIWait polls a CI pipeline until it settles.
	TypeCIWait Type = "CIWait"

	// TypeDeploy deploys the merged result to an environment.
	TypeDeploy Type = "Deploy"

	// TypeQA runs the post-deploy QA checklist or script.
	TypeQA Type = "QA"
)

// All returns every canonical type in palette order.
func All() []Type {
	return []Type{TypeJiraTrigger, TypeCreateMR, TypePlanPatch, TypeCIWait, TypeDeploy, TypeQA}
}

// aliases maps folded spellings to canonical tags. Keys are the result of
// fold(): lowercase with everything but letters stripped. Older builds of
// the canvas frontend emitted "CiWait", "Jira_Trigger" and similar variants.
var aliases = map[string]Type{
	"jiratrigger":  TypeJiraTrigger,
	"jira":         TypeJiraTrigger,
	"createmr":     TypeCreateMR,
	"mergerequest": TypeCreateMR,
	"planpatch":    TypePlanPatch,
	"plan":         TypePlanPatch,
	"ciwait":       TypeCIWait,
	"cwait":        TypeCIWait,
	"ci":           TypeCIWait,
	"deploy":       TypeDeploy,
	"qa":           TypeQA,
}

// fold reduces a raw type string to its comparison form: letters only,
// lowercased. "Jira_Trigger" and "jiraTrigger" both fold to "jiratrigger".
func fold(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// Normalize resolves a raw type string to its canonical tag.
//
// Inputs:
//
//	raw - Type string as authored, in any spelling variant.
//
// Outputs:
//
//	Type - The canonical tag, valid only when ok is true.
//	bool - false when the input is unrecognized. Callers must render a
//	       diagnostic placeholder for unknown types, never panic.
func Normalize(raw string) (Type, bool) {
	t, ok := aliases[fold(raw)]
	return t, ok
}

// =============================================================================
// Field Contracts
// =============================================================================

// JiraTriggerConfig is the data contract for JiraTrigger stages.
type JiraTriggerConfig struct {
	// ProjectKey is the Jira project (or concrete issue key) to act on.
	ProjectKey string `json:"projectKey" validate:"required"`

	// JQL optionally narrows the intake query.
	JQL string `json:"jql,omitempty"`

	// LabelFilter optionally restricts intake to issues with this label.
	LabelFilter string `json:"labelFilter,omitempty"`
}

// CreateMRConfig is the data contract for CreateMR stages.
type CreateMRConfig struct {
	// RepoPath is the GitLab project path, e.g. "group/site".
	RepoPath string `json:"repoPath,omitempty"`

	// BranchPattern names the work branch; {JIRA} expands to the issue key.
	BranchPattern string `json:"branchPattern" validate:"required"`

	// TargetBranch is the merge target.
	TargetBranch string `json:"targetBranch" validate:"required"`
}

// PlanPatchConfig is the data contract for PlanPatch stages.
type PlanPatchConfig struct {
	// Scope limits where the patch may touch files.
	Scope string `json:"scope" validate:"oneof=modules/custom repo"`

	// Guardrails keeps the patch planner inside the configured policy.
	Guardrails bool `json:"guardrails"`

	// DryRun plans without writing anything.
	DryRun bool `json:"dryRun"`
}

// CIWaitConfig is the data contract for CIWait stages.
type CIWaitConfig struct {
	// PipelineURL optionally pins the pipeline to watch instead of the
	// latest one on the work branch.
	PipelineURL string `json:"pipelineUrl,omitempty" validate:"omitempty,url"`

	// TimeoutSec bounds the total wait, 30s to 1h.
	TimeoutSec int `json:"timeoutSec" validate:"min=30,max=3600"`

	// PollSec is the poll interval, 3s to 60s.
	PollSec int `json:"pollSec" validate:"min=3,max=60"`
}

// DeployConfig is the data contract for Deploy stages.
type DeployConfig struct {
	// Environment is the deploy target.
	Environment string `json:"environment" validate:"oneof=dev stg prod"`

	// SafetyChecks runs config-import and status checks before cutover.
	SafetyChecks bool `json:"safetyChecks"`
}

// QAConfig is the data contract for QA stages. Both fields are optional;
// an empty QA stage still gates the pipeline on a manual pass.
type QAConfig struct {
	// ChecklistRef points at the QA checklist document.
	ChecklistRef string `json:"checklistRef,omitempty"`

	// ScriptRef points at an automated QA script.
	ScriptRef string `json:"scriptRef,omitempty"`
}

// contracts maps each canonical type to a zero value of its config struct.
var contracts = map[Type]any{
	TypeJiraTrigger: JiraTriggerConfig{},
	TypeCreateMR:    CreateMRConfig{},
	TypePlanPatch:   PlanPatchConfig{},
	TypeCIWait:      CIWaitConfig{},
	TypeDeploy:      DeployConfig{},
	TypeQA:          QAConfig{},
}

// Defaults returns a fresh defaults map for the given type, so that a newly
// created node is valid as soon as its required fields are filled in.
//
// The caller owns the returned map.
func Defaults(t Type) map[string]any {
	switch t {
	case TypeCreateMR:
		return map[string]any{
			"branchPattern": "feature/{JIRA}",
			"targetBranch":  "master",
		}
	case TypePlanPatch:
		return map[string]any{
			"scope":      "modules/custom",
			"guardrails": true,
			"dryRun":     true,
		}
	case TypeCIWait:
		return map[string]any{
			"timeoutSec": 900,
			"pollSec":    10,
		}
	case TypeDeploy:
		return map[string]any{
			"environment":  "stg",
			"safetyChecks": true,
		}
	default:
		return map[string]any{}
	}
}

// =============================================================================
// Validation
// =============================================================================

// FieldErrors maps a json field name to a validation message.
type FieldErrors map[string]string

// Error renders the field errors in a stable order.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// validate is the shared validator instance. Field names in errors are
// reported by json tag, matching the wire document.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// universalFields are carried by every node's data map regardless of type
// and are not part of any field contract.
var universalFields = map[string]bool{
	"label":     true,
	"profileId": true,
	"profile":   true,
}

// Validate checks a data map against the field contract for its type.
//
// # Description
//
// The data map is merged over the type's defaults, decoded into the typed
// contract struct, and validated. Universal fields (label, profileId) are
// ignored. The input map is never mutated.
//
// # Inputs
//
//   - t: Canonical type. Must come from Normalize or the Type constants.
//   - data: Node data payload. May be nil.
//
// # Outputs
//
//   - map[string]any: The effective data (defaults merged under data),
//     nil when validation fails.
//   - FieldErrors: Per-field messages, nil on success.
func Validate(t Type, data map[string]any) (map[string]any, FieldErrors) {
	contract, ok := contracts[t]
	if !ok {
		return nil, FieldErrors{"type": fmt.Sprintf("unknown type %q", string(t))}
	}

	effective := Defaults(t)
	for k, v := range data {
		effective[k] = v
	}

	typed := reflect.New(reflect.TypeOf(contract)).Interface()
	raw, err := json.Marshal(stripUniversal(effective))
	if err != nil {
		return nil, FieldErrors{"data": err.Error()}
	}
	if err := json.Unmarshal(raw, typed); err != nil {
		return nil, decodeError(err)
	}

	if err := validate.Struct(typed); err != nil {
		var verrs validator.ValidationErrors
		fe := FieldErrors{}
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				fe[ve.Field()] = message(ve)
			}
		} else {
			fe["data"] = err.Error()
		}
		return nil, fe
	}

	return effective, nil
}

// stripUniversal returns data without the universal fields. The input is
// not modified.
func stripUniversal(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if !universalFields[k] {
			out[k] = v
		}
	}
	return out
}

// decodeError maps a json decode failure onto the offending field when the
// error identifies one.
func decodeError(err error) FieldErrors {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return FieldErrors{ute.Field: fmt.Sprintf("expected %s", ute.Type.Kind())}
	}
	return FieldErrors{"data": err.Error()}
}

// message renders a human-readable error for a failed validation tag.
func message(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Split(ve.Param(), " "), ", "))
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
