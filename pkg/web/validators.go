package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

// Gte returns a ParamValidator that accepts values greater than or equal to min.
func Gte(min int64) ParamValidator {
	return func(v int64) bool { return v >= min }
}

// Between returns a ParamValidator that accepts values in [min, max].
func Between(min, max int64) ParamValidator {
	return func(v int64) bool { return v >= min && v <= max }
}

// ParseOptionalInt reads an integer query parameter. An absent parameter yields def.
// On a malformed or rejected value it writes a 400 response and returns false.
func ParseOptionalInt(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, def int, validate ParamValidator) (int, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, true
	}
	intValue, err := strconv.ParseInt(value, 10, 32)
	if err != nil || !validate(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int(intValue), true
}
