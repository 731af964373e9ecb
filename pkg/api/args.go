package api

import "maps"

// Args represents a map of named values passed to or from steps and tasks
type Args map[string]any

// Set returns a new Args with the specified name-value pair added. The
// receiver is never mutated
func (a Args) Set(name string, value any) Args {
	if a == nil {
		return Args{name: value}
	}
	res := maps.Clone(a)
	res[name] = value
	return res
}

// Clone returns a shallow copy of the Args
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// Merge returns a new Args with the other map's pairs layered on top of the
// receiver's
func (a Args) Merge(other Args) Args {
	if len(other) == 0 {
		return a.Clone()
	}
	res := make(Args, len(a)+len(other))
	maps.Copy(res, a)
	maps.Copy(res, other)
	return res
}

// GetString retrieves a string value from args, returning defaultValue if
// not found or wrong type
func (a Args) GetString(name, defaultValue string) string {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

// GetBool retrieves a boolean value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetBool(name string, defaultValue bool) bool {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	b, ok := val.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetInt retrieves an integer value from args, returning defaultValue if not
// found or wrong type. Supports both int and float64 (converting from JSON
// numbers)
func (a Args) GetInt(name string, defaultValue int) int {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	if i, ok := val.(int); ok {
		return i
	}
	if f, ok := val.(float64); ok {
		return int(f)
	}
	return defaultValue
}

// GetStringMap retrieves a string-keyed map value from args, returning nil
// if not found or wrong type
func (a Args) GetStringMap(name string) map[string]any {
	val, ok := a[name]
	if !ok {
		return nil
	}
	m, ok := val.(map[string]any)
	if !ok {
		return nil
	}
	return m
}
