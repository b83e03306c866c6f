package hardware

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
)

// ErrUnsupportedTemplate is returned when a device cannot serve a template.
var ErrUnsupportedTemplate = errors.New("unsupported request template")

// TemplateSpec is the stock RequestSpec: a named template with an optional
// frame rate cap and free-form parameters.
type TemplateSpec struct {
	Template string
	FPS      int
	Params   map[string]string
}

// Materialize targets every output and clamps FPS to the device maximum.
// A template must appear in the device capabilities when the device lists any.
func (s TemplateSpec) Materialize(_ Device, details Details, outputs OutputSet) (Request, error) {
	if s.Template == "" {
		return Request{}, fmt.Errorf("%w: empty template", ErrUnsupportedTemplate)
	}
	if len(details.Capabilities) > 0 && !details.Supports(s.Template) {
		return Request{}, fmt.Errorf("%w: %q on device %q", ErrUnsupportedTemplate, s.Template, details.ID)
	}

	fps := s.FPS
	if details.MaxFPS > 0 && (fps == 0 || fps > details.MaxFPS) {
		fps = details.MaxFPS
	}

	return Request{
		Template: s.Template,
		Targets:  outputs.Clone(),
		FPS:      fps,
		Params:   maps.Clone(s.Params),
	}, nil
}

// Equal reports whether other is a TemplateSpec with identical fields.
func (s TemplateSpec) Equal(other RequestSpec) bool {
	o, ok := other.(TemplateSpec)
	if !ok {
		return false
	}
	return s.Template == o.Template && s.FPS == o.FPS && maps.Equal(s.Params, o.Params)
}

// SpecsEqual compares two request specs by value. Specs exposing
// Equal(RequestSpec) bool decide themselves; comparable values use ==;
// anything else is treated as changed.
func SpecsEqual(a, b RequestSpec) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(interface{ Equal(RequestSpec) bool }); ok {
		return eq.Equal(b)
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

// Compile-time interface satisfaction check.
var _ RequestSpec = TemplateSpec{}
