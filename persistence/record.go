package persistence

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Version is the current serialization protocol version.
const Version = "0.1"

var (
	// ErrUnknownVersion is returned for records written by an unknown
	// protocol version.
	ErrUnknownVersion = errors.New("persistence: unknown record version")

	// ErrNotRegistered is returned when a record references an entity type
	// that was never registered.
	ErrNotRegistered = errors.New("persistence: entity type not registered")
)

// MalformedRecordError indicates a dictionary that is not a well-formed
// record: a record must contain exactly the five required top-level keys.
type MalformedRecordError struct {
	Keys []string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("persistence: malformed record with keys %v", e.Keys)
}

// Entity is the capability interface for serializable objects.
//
// InitParams returns everything needed to reconstruct configuration; Data
// returns derived state injected after construction. Values may be nested
// Entities, []Entity, *npy.Array (via Array), or plain JSON-able values.
type Entity interface {
	// ID identifies the entity type for registry lookup.
	ID() ID
	// InitParams returns the constructor parameters.
	InitParams() map[string]any
	// Data returns the derived state.
	Data() map[string]any
	// SetData injects derived state after construction.
	SetData(data map[string]any) error
}

// ID is the registry identifier of an entity type.
type ID struct {
	Module string
	Class  string
}

func (id ID) String() string { return id.Module + "." + id.Class }

// Factory constructs an entity from decoded init parameters.
type Factory func(init map[string]any) (Entity, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[ID]Factory)
)

// Register installs the factory for an entity type. It is meant to be called
// from package init functions and panics on duplicate registration.
func Register(id ID, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("persistence: duplicate registration for %s", id))
	}
	registry[id] = f
}

func lookup(id ID) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[id]
	return f, ok
}

// Record is the five-key serialized form of an entity.
type Record struct {
	Version    string         `json:"version"`
	ClassName  string         `json:"class_name"`
	ModuleName string         `json:"module_name"`
	InitParams map[string]any `json:"init_params"`
	Data       map[string]any `json:"data"`
}

var recordKeys = []string{"class_name", "data", "init_params", "module_name", "version"}

// IsValidRecordMap reports whether the decoded dictionary is a well-formed
// record: it must contain exactly the five required top-level keys.
func IsValidRecordMap(m map[string]any) bool {
	if len(m) != len(recordKeys) {
		return false
	}
	for _, k := range recordKeys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// ToRecord recursively converts an entity into its record form.
// Nested entities in init_params and data become nested records; slices are
// converted element-wise, preserving order.
func ToRecord(e Entity) (*Record, error) {
	id := e.ID()
	init, err := convertTree(e.InitParams())
	if err != nil {
		return nil, err
	}
	data, err := convertTree(e.Data())
	if err != nil {
		return nil, err
	}
	return &Record{
		Version:    Version,
		ClassName:  id.Class,
		ModuleName: id.Module,
		InitParams: init,
		Data:       data,
	}, nil
}

func convertTree(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		cv, err := convertValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func convertValue(v any) (any, error) {
	switch val := v.(type) {
	case Entity:
		return ToRecord(val)
	case []Entity:
		out := make([]any, len(val))
		for i, e := range val {
			r, err := ToRecord(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			cv, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return v, nil
	}
}

// FromRecord reconstructs an entity: resolve the registered factory,
// construct it with init_params, then inject data.
// Nested records inside init_params and data are resolved first.
func FromRecord(r *Record) (Entity, error) {
	if r.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, r.Version)
	}
	id := ID{Module: r.ModuleName, Class: r.ClassName}
	factory, ok := lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}

	init, err := resolveTree(r.InitParams)
	if err != nil {
		return nil, fmt.Errorf("%s init_params: %w", id, err)
	}
	data, err := resolveTree(r.Data)
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", id, err)
	}

	e, err := factory(init)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", id, err)
	}
	if err := e.SetData(data); err != nil {
		return nil, fmt.Errorf("restoring %s state: %w", id, err)
	}
	return e, nil
}

func resolveTree(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := resolveValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func resolveValue(v any) (any, error) {
	switch val := v.(type) {
	case *Record:
		return FromRecord(val)
	case map[string]any:
		if IsValidRecordMap(val) {
			rec, err := recordFromMap(val)
			if err != nil {
				return nil, err
			}
			return FromRecord(rec)
		}
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rv, err := resolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func recordFromMap(m map[string]any) (*Record, error) {
	if !IsValidRecordMap(m) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, &MalformedRecordError{Keys: keys}
	}
	rec := &Record{}
	var ok bool
	if rec.Version, ok = m["version"].(string); !ok {
		return nil, fmt.Errorf("persistence: record version is not a string")
	}
	if rec.ClassName, ok = m["class_name"].(string); !ok {
		return nil, fmt.Errorf("persistence: record class_name is not a string")
	}
	if rec.ModuleName, ok = m["module_name"].(string); !ok {
		return nil, fmt.Errorf("persistence: record module_name is not a string")
	}
	if rec.InitParams, ok = m["init_params"].(map[string]any); !ok {
		return nil, fmt.Errorf("persistence: record init_params is not a map")
	}
	if rec.Data, ok = m["data"].(map[string]any); !ok {
		return nil, fmt.Errorf("persistence: record data is not a map")
	}
	return rec, nil
}
