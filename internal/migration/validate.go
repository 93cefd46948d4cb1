package migration

import (
	"errors"
	"fmt"
	"time"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/metrics"
)

// ErrInvalidStructure is returned when a document does not have the shape of
// the version it claims to be.
var ErrInvalidStructure = errors.New("migration: invalid data structure")

// ErrUnknownVersion is returned for a version tag with no migration path.
var ErrUnknownVersion = errors.New("migration: unknown schema version")

// The validators work on the generic form produced by json.Unmarshal into
// an any: objects are map[string]any and numbers are float64. A value of
// any other Go type fails the check, so "123" is not accepted as a number.

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStructure, fmt.Sprintf(format, args...))
}

func asObject(raw any, where string) (map[string]any, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil, invalid("%s is not an object", where)
	}
	return obj, nil
}

func isNumber(raw any) bool {
	_, ok := raw.(float64)
	return ok
}

func registered(kinds []metrics.Kind, name string) bool {
	for _, kind := range kinds {
		if string(kind) == name {
			return true
		}
	}
	return false
}

func isDate(key string) bool {
	_, err := time.Parse(activity.DateLayout, key)
	return err == nil
}

// ValidateCheckpoints checks a current checkpoints table: every entry must
// be an object with a numeric mtime and a numeric value for each kind.
func ValidateCheckpoints(raw any, kinds []metrics.Kind) error {
	table, err := asObject(raw, "checkpoints")
	if err != nil {
		return err
	}

	for path, entry := range table {
		fields, err := asObject(entry, fmt.Sprintf("checkpoints[%q]", path))
		if err != nil {
			return err
		}
		if !isNumber(fields["mtime"]) {
			return invalid("checkpoints[%q].mtime is not a number", path)
		}
		for _, kind := range kinds {
			if !isNumber(fields[string(kind)]) {
				return invalid("checkpoints[%q].%s is not a number", path, kind)
			}
		}
	}
	return nil
}

// ValidateDailyActivity checks a current activity table: keys must be
// calendar dates and each day may hold only registered kinds with
// non-negative numeric totals.
func ValidateDailyActivity(raw any, kinds []metrics.Kind) error {
	table, err := asObject(raw, "activityOverTime")
	if err != nil {
		return err
	}

	for date, entry := range table {
		if !isDate(date) {
			return invalid("activityOverTime key %q is not a YYYY-MM-DD date", date)
		}
		totals, err := asObject(entry, fmt.Sprintf("activityOverTime[%q]", date))
		if err != nil {
			return err
		}
		for name, value := range totals {
			if !registered(kinds, name) {
				return invalid("activityOverTime[%q] has unknown kind %q", date, name)
			}
			n, ok := value.(float64)
			if !ok || n < 0 {
				return invalid("activityOverTime[%q].%s is not a non-negative number", date, name)
			}
		}
	}
	return nil
}

// ValidateLegacy104Checkpoints checks checkpoints[kind][path] = number.
func ValidateLegacy104Checkpoints(raw any, kinds []metrics.Kind) error {
	return validateKindTable(raw, "checkpoints", kinds, func(where string, leaf any) error {
		if !isNumber(leaf) {
			return invalid("%s is not a number", where)
		}
		return nil
	}, false)
}

// ValidateLegacy103Checkpoints checks checkpoints[kind][path] = {value, mtime}.
func ValidateLegacy103Checkpoints(raw any, kinds []metrics.Kind) error {
	return validateKindTable(raw, "checkpoints", kinds, func(where string, leaf any) error {
		record, err := asObject(leaf, where)
		if err != nil {
			return err
		}
		if !isNumber(record["value"]) {
			return invalid("%s.value is not a number", where)
		}
		if !isNumber(record["mtime"]) {
			return invalid("%s.mtime is not a number", where)
		}
		return nil
	}, false)
}

// ValidateLegacyActivity checks activityOverTime[kind][date] = number, the
// layout shared by 1.0.3 and 1.0.4.
func ValidateLegacyActivity(raw any, kinds []metrics.Kind) error {
	return validateKindTable(raw, "activityOverTime", kinds, func(where string, leaf any) error {
		n, ok := leaf.(float64)
		if !ok || n < 0 {
			return invalid("%s is not a non-negative number", where)
		}
		return nil
	}, true)
}

func validateKindTable(raw any, name string, kinds []metrics.Kind, leaf func(where string, v any) error, dateKeys bool) error {
	table, err := asObject(raw, name)
	if err != nil {
		return err
	}

	for kindName, inner := range table {
		if !registered(kinds, kindName) {
			return invalid("%s has unknown kind %q", name, kindName)
		}
		entries, err := asObject(inner, fmt.Sprintf("%s[%q]", name, kindName))
		if err != nil {
			return err
		}
		for key, value := range entries {
			where := fmt.Sprintf("%s[%q][%q]", name, kindName, key)
			if dateKeys && !isDate(key) {
				return invalid("%s key is not a YYYY-MM-DD date", where)
			}
			if err := leaf(where, value); err != nil {
				return err
			}
		}
	}
	return nil
}
