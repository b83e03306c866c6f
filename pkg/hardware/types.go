package hardware

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Identifier names a camera device, e.g. "0" or "back-wide".
type Identifier string

// Output is a surface the session delivers frames to.
type Output struct {
	Name   string `yaml:"name" json:"name"`
	Width  int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height int    `yaml:"height,omitempty" json:"height,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// String returns "name" or "name:WxH".
func (o Output) String() string {
	if o.Width == 0 && o.Height == 0 {
		return o.Name
	}
	return fmt.Sprintf("%s:%dx%d", o.Name, o.Width, o.Height)
}

// OutputSet is an ordered collection of outputs, compared by value.
type OutputSet []Output

// Empty reports whether the set has no outputs.
func (s OutputSet) Empty() bool {
	return len(s) == 0
}

// Equal reports whether both sets hold the same outputs in the same order.
func (s OutputSet) Equal(other OutputSet) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy that does not share the backing array.
func (s OutputSet) Clone() OutputSet {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Names returns the output names in order.
func (s OutputSet) Names() []string {
	names := make([]string, len(s))
	for i, o := range s {
		names[i] = o.Name
	}
	return names
}

// String returns a comma separated list of outputs.
func (s OutputSet) String() string {
	parts := make([]string, len(s))
	for i, o := range s {
		parts[i] = o.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Details describes the static capabilities of a device.
type Details struct {
	ID                Identifier
	Name              string
	Facing            string
	SensorOrientation int
	MaxFPS            int
	Capabilities      []string
}

// Supports reports whether the device lists the given capability.
func (d Details) Supports(capability string) bool {
	return slices.Contains(d.Capabilities, capability)
}

// Request is a concrete hardware capture request.
type Request struct {
	Template string
	Targets  OutputSet
	FPS      int
	Params   map[string]string
}

// Equal reports whether two requests are identical.
func (r Request) Equal(other Request) bool {
	return r.Template == other.Template &&
		r.FPS == other.FPS &&
		r.Targets.Equal(other.Targets) &&
		maps.Equal(r.Params, other.Params)
}

// CaptureOptions tunes a single one-shot capture.
type CaptureOptions struct {
	Flash   string
	Quality int
}

// CaptureResult is the hardware report for a completed one-shot capture.
type CaptureResult struct {
	ID        string
	Timestamp time.Time
	Metadata  map[string]string
}
