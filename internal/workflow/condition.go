package workflow

import (
	"encoding/json"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/siderealworks/meridian/pkg/api"
	"github.com/siderealworks/meridian/pkg/log"
)

// evalCondition evaluates a step condition as a gjson path against the
// serialized shared context. The step runs when the path resolves to a
// value that is neither false nor null; an unserializable context counts
// as false
func evalCondition(cond string, shared api.Args) bool {
	data, err := json.Marshal(shared)
	if err != nil {
		slog.Error("Failed to serialize shared context for condition",
			log.Error(err))
		return false
	}

	res := gjson.GetBytes(data, cond)
	if !res.Exists() {
		return false
	}
	return res.Type != gjson.False && res.Type != gjson.Null
}
