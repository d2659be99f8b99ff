// Copyright (C) 2025 drupal-devops-copilot contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/ovanesb/drupal-devops-copilot/services/editor/inspector"
)

// =============================================================================
// Field Bindings
// =============================================================================

// fieldKind records the original value type so edited text can be coerced
// back before validation.
type fieldKind int

const (
	fieldString fieldKind = iota
	fieldInt
	fieldFloat
	fieldBool
)

// fieldBinding is the bridge between one inspector field and its huh
// widget. huh edits the text/flag members in place; applyBindings coerces
// them back into the form's value map.
type fieldBinding struct {
	name string
	kind fieldKind
	text string
	flag bool
}

// buildBindings derives widget bindings from the form's effective values.
//
// The label field sorts first since it is what users edit most; the rest
// follow in name order so the layout is stable across opens. Non-scalar
// values (such as a staged profile reference) have no widget and pass
// through Submit untouched.
func buildBindings(f *inspector.Form) []*fieldBinding {
	names := make([]string, 0, len(f.Values))
	for name, v := range f.Values {
		switch v.(type) {
		case string, bool, int, int64, float64:
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == "label" {
			return true
		}
		if names[j] == "label" {
			return false
		}
		return names[i] < names[j]
	})

	bindings := make([]*fieldBinding, 0, len(names))
	for _, name := range names {
		b := &fieldBinding{name: name}
		switch v := f.Values[name].(type) {
		case string:
			b.kind = fieldString
			b.text = v
		case bool:
			b.kind = fieldBool
			b.flag = v
		case int:
			b.kind = fieldInt
			b.text = strconv.Itoa(v)
		case int64:
			b.kind = fieldInt
			b.text = strconv.FormatInt(v, 10)
		case float64:
			// JSON round-trips put integers here too; keep whole numbers
			// rendered without a decimal point.
			if v == float64(int64(v)) {
				b.kind = fieldInt
				b.text = strconv.FormatInt(int64(v), 10)
			} else {
				b.kind = fieldFloat
				b.text = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		bindings = append(bindings, b)
	}
	return bindings
}

// newFieldForm builds the huh form for a set of bindings.
func newFieldForm(f *inspector.Form, bindings []*fieldBinding) *huh.Form {
	fields := make([]huh.Field, 0, len(bindings))
	for _, b := range bindings {
		title := b.name
		if msg, ok := f.Errors[b.name]; ok {
			title = fmt.Sprintf("%s (%s)", b.name, msg)
		}
		if b.kind == fieldBool {
			fields = append(fields, huh.NewConfirm().
				Key(b.name).
				Title(title).
				Value(&b.flag))
			continue
		}
		fields = append(fields, huh.NewInput().
			Key(b.name).
			Title(title).
			Value(&b.text))
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithShowHelp(false).
		WithShowErrors(false)
}

// applyBindings coerces edited widget state back into the inspector form.
// A numeric field holding non-numeric text fails here, before schema
// validation ever runs.
func applyBindings(f *inspector.Form, bindings []*fieldBinding) error {
	for _, b := range bindings {
		switch b.kind {
		case fieldString:
			f.Set(b.name, b.text)
		case fieldBool:
			f.Set(b.name, b.flag)
		case fieldInt:
			n, err := strconv.Atoi(b.text)
			if err != nil {
				return fmt.Errorf("%s: %q is not an integer", b.name, b.text)
			}
			f.Set(b.name, n)
		case fieldFloat:
			x, err := strconv.ParseFloat(b.text, 64)
			if err != nil {
				return fmt.Errorf("%s: %q is not a number", b.name, b.text)
			}
			f.Set(b.name, x)
		}
	}
	return nil
}
