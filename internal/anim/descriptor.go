package anim

import (
	"strings"

	"github.com/google/uuid"
)

// KeypressMode selects how an instance forwards key events to its child.
type KeypressMode int

const (
	// KPNone forwards presses as retriggers and drops releases.
	KPNone KeypressMode = iota
	// KPName sends events with the key's name.
	KPName
	// KPPosition sends events with bounding-box-relative coordinates.
	KPPosition
)

// Descriptor is the immutable metadata and parameter schema for one
// discovered animation script. GUID is the canonical identity; Name is
// display-only and is rewritten only to disambiguate duplicates.
type Descriptor struct {
	GUID        uuid.UUID
	Name        string
	Version     string
	Year        string
	Author      string
	License     string
	Description string

	KPMode       KeypressMode
	AbsoluteTime bool
	Repeat       bool
	Preempt      bool
	LiveParams   bool

	Params []Param
}

// HasParam reports whether the descriptor declares a parameter with
// the given name, case-insensitively.
func (d *Descriptor) HasParam(name string) bool {
	_, ok := d.Param(name)
	return ok
}

// Param looks up a parameter definition by name, case-insensitively.
func (d *Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Param{}, false
}

// valid reports whether the required identity fields are all present.
func (d *Descriptor) valid() bool {
	return d.GUID != uuid.Nil &&
		d.Name != "" &&
		d.Version != "" &&
		d.Year != "" &&
		d.Author != "" &&
		d.License != ""
}

// DefaultParams builds the initial parameter value mapping from the
// declared defaults, suitable for passing to Instance.Init.
func (d *Descriptor) DefaultParams() map[string]interface{} {
	values := make(map[string]interface{}, len(d.Params))
	for _, p := range d.Params {
		values[p.Name] = p.Default
	}
	return values
}
