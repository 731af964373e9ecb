package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// TaskID is a process-wide unique identifier for a submitted task
	TaskID string

	// StepID is a step identifier, unique within a workflow definition
	StepID string

	// Name identifies a registered workflow definition
	Name string
)

// NewTaskID allocates a fresh task identifier
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// InvalidNameChars matches characters not permitted in workflow names. Valid
// characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeName lowercases a name, removes invalid characters, replaces
// spaces with hyphens, and trims leading and trailing hyphens
func SanitizeName[T ~string](name T) T {
	lower := strings.ToLower(string(name))
	sanitized := InvalidNameChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}
