// Package taxonomy provides the tracking schema model: event, property and funnel
// definitions that logged analytics data is expected to conform to.
//
// A Schema is immutable once constructed with NewSchema and safe for concurrent
// use by any number of validators.
package taxonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sentinel errors for schema construction.
var (
	ErrEmptyEventName    = errors.New("event name is required")
	ErrDuplicateEvent    = errors.New("duplicate event definition")
	ErrEmptyPropertyName = errors.New("property name is required")
	ErrUnknownDataType   = errors.New("unknown property data type")
	ErrEmptyFunnelName   = errors.New("funnel name is required")
	ErrEmptyFunnel       = errors.New("funnel must declare at least one step")
	ErrDependencyCycle   = errors.New("event dependency cycle")
)

type (
	// DataType is the declared type of a property value.
	DataType string

	// EventDefinition declares a trackable event and the events that must
	// precede it in the same user's history.
	EventDefinition struct {
		Name     string   `json:"name"               yaml:"name"`
		Requires []string `json:"requires,omitempty" yaml:"requires"`
	}

	// PropertyDefinition declares a property and its type. An empty Event makes it
	// a common property that applies to every event.
	PropertyDefinition struct {
		Name  string   `json:"name"            yaml:"name"`
		Event string   `json:"event,omitempty" yaml:"event"`
		Type  DataType `json:"type"            yaml:"type"`
	}

	// FunnelDefinition is an ordered user journey. Steps need not be contiguous in a
	// user's history, only ordered.
	FunnelDefinition struct {
		Name  string   `json:"name"  yaml:"name"`
		Steps []string `json:"steps" yaml:"steps"`
	}

	// Definition is the authored form of a schema, as read from YAML or JSON.
	Definition struct {
		Events     []EventDefinition    `json:"events"     yaml:"events"`
		Properties []PropertyDefinition `json:"properties" yaml:"properties"`
		Funnels    []FunnelDefinition   `json:"funnels"    yaml:"funnels"`
	}

	// Schema is the validated, indexed, read-only taxonomy.
	Schema struct {
		events           []EventDefinition
		properties       []PropertyDefinition
		funnels          []FunnelDefinition
		eventIndex       map[string]*EventDefinition
		eventProperties  map[string][]PropertyDefinition
		commonProperties []PropertyDefinition
	}
)

const (
	DataTypeString      DataType = "string"
	DataTypeNumber      DataType = "number"
	DataTypeBoolean     DataType = "boolean"
	DataTypeTime        DataType = "time"
	DataTypeList        DataType = "list"
	DataTypeObject      DataType = "object"
	DataTypeObjectGroup DataType = "object-group"
)

// ValidDataTypes returns every data type a property may declare.
func ValidDataTypes() []DataType {
	return []DataType{
		DataTypeString,
		DataTypeNumber,
		DataTypeBoolean,
		DataTypeTime,
		DataTypeList,
		DataTypeObject,
		DataTypeObjectGroup,
	}
}

// Normalize returns the lower-cased, trimmed form of the type.
func (dt DataType) Normalize() DataType {
	return DataType(strings.ToLower(strings.TrimSpace(string(dt))))
}

// IsValid reports whether the type is one of ValidDataTypes (case-insensitive).
func (dt DataType) IsValid() bool {
	normalized := dt.Normalize()
	for _, valid := range ValidDataTypes() {
		if normalized == valid {
			return true
		}
	}

	return false
}

// IsScalar reports whether values of this type are checked at runtime.
// Only string, number and boolean are; time, list, object and object-group are
// accepted as-is.
func (dt DataType) IsScalar() bool {
	switch dt.Normalize() {
	case DataTypeString, DataTypeNumber, DataTypeBoolean:
		return true
	default:
		return false
	}
}

// IsCommon reports whether the property applies to all events.
func (p PropertyDefinition) IsCommon() bool {
	return p.Event == ""
}

// NewSchema validates a Definition and builds the lookup indexes.
//
// Rejected definitions:
//   - events without a name, or declared twice
//   - properties without a name or with an unknown type
//   - funnels without a name or without steps
//   - dependency cycles between events (including self-dependencies)
//
// Repeated requirements are collapsed. Requirements that name undeclared events are
// kept and logged; they can only be satisfied if such events show up in the logs.
func NewSchema(def Definition) (*Schema, error) {
	s := &Schema{
		events:          make([]EventDefinition, 0, len(def.Events)),
		properties:      make([]PropertyDefinition, 0, len(def.Properties)),
		funnels:         make([]FunnelDefinition, 0, len(def.Funnels)),
		eventIndex:      make(map[string]*EventDefinition, len(def.Events)),
		eventProperties: make(map[string][]PropertyDefinition),
	}

	for i, ev := range def.Events {
		name := strings.TrimSpace(ev.Name)
		if name == "" {
			return nil, fmt.Errorf("%w (events[%d])", ErrEmptyEventName, i)
		}

		if _, exists := s.eventIndex[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, name)
		}

		requires := make([]string, 0, len(ev.Requires))
		listed := make(map[string]bool, len(ev.Requires))

		for _, req := range ev.Requires {
			if req = strings.TrimSpace(req); req != "" && !listed[req] {
				listed[req] = true
				requires = append(requires, req)
			}
		}

		// s.events was sized up front, so the pointer survives later appends.
		s.events = append(s.events, EventDefinition{Name: name, Requires: requires})
		s.eventIndex[name] = &s.events[len(s.events)-1]
	}

	for _, ev := range s.events {
		for _, req := range ev.Requires {
			if _, declared := s.eventIndex[req]; !declared {
				slog.Warn("Event requires an undeclared event",
					slog.String("event", ev.Name),
					slog.String("requires", req))
			}
		}
	}

	if cycle := findCycle(s.events); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> "))
	}

	for i, prop := range def.Properties {
		name := strings.TrimSpace(prop.Name)
		if name == "" {
			return nil, fmt.Errorf("%w (properties[%d])", ErrEmptyPropertyName, i)
		}

		if !prop.Type.IsValid() {
			return nil, fmt.Errorf("%w: %q for property %s", ErrUnknownDataType, prop.Type, name)
		}

		normalized := PropertyDefinition{
			Name:  name,
			Event: strings.TrimSpace(prop.Event),
			Type:  prop.Type.Normalize(),
		}

		s.properties = append(s.properties, normalized)

		if normalized.IsCommon() {
			s.commonProperties = append(s.commonProperties, normalized)
		} else {
			s.eventProperties[normalized.Event] = append(s.eventProperties[normalized.Event], normalized)
		}
	}

	for i, funnel := range def.Funnels {
		name := strings.TrimSpace(funnel.Name)
		if name == "" {
			return nil, fmt.Errorf("%w (funnels[%d])", ErrEmptyFunnelName, i)
		}

		steps := make([]string, 0, len(funnel.Steps))
		for _, step := range funnel.Steps {
			if step = strings.TrimSpace(step); step != "" {
				steps = append(steps, step)
			}
		}

		if len(steps) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyFunnel, name)
		}

		s.funnels = append(s.funnels, FunnelDefinition{Name: name, Steps: steps})
	}

	return s, nil
}

// Event returns the definition for name, if declared.
func (s *Schema) Event(name string) (EventDefinition, bool) {
	ev, ok := s.eventIndex[name]
	if !ok {
		return EventDefinition{}, false
	}

	return *ev, true
}

// Events returns all event definitions in declaration order.
func (s *Schema) Events() []EventDefinition {
	return append([]EventDefinition(nil), s.events...)
}

// PropertiesFor returns the properties owned by event, excluding common properties.
func (s *Schema) PropertiesFor(event string) []PropertyDefinition {
	return s.eventProperties[event]
}

// CommonProperties returns the properties that apply to every event.
func (s *Schema) CommonProperties() []PropertyDefinition {
	return s.commonProperties
}

// Properties returns all property definitions in declaration order.
func (s *Schema) Properties() []PropertyDefinition {
	return append([]PropertyDefinition(nil), s.properties...)
}

// Funnels returns all funnel definitions in declaration order.
func (s *Schema) Funnels() []FunnelDefinition {
	return s.funnels
}

// Definition returns the normalized authored form of the schema.
func (s *Schema) Definition() Definition {
	return Definition{
		Events:     s.Events(),
		Properties: s.Properties(),
		Funnels:    append([]FunnelDefinition(nil), s.funnels...),
	}
}
