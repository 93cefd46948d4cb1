package migration

import (
	"encoding/json"
	"fmt"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/metrics"
)

// ParseDocument decodes raw JSON into its generic form.
func ParseDocument(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, invalid("not a JSON object: %v", err)
	}
	if doc == nil {
		return nil, invalid("document is null")
	}
	return doc, nil
}

// HasActivityData reports whether a decoded document carries any of the
// activity tables. Settings-only legacy files do not.
func HasActivityData(doc map[string]any) bool {
	_, hasCheckpoints := doc["checkpoints"]
	_, hasActivity := doc["activityOverTime"]
	return hasCheckpoints || hasActivity
}

// DetectLegacyVersion infers the schema of a legacy document. An explicit
// version field wins. Otherwise the shape of the first checkpoint leaf
// decides: an object means 1.0.3 and anything else 1.0.4.
func DetectLegacyVersion(doc map[string]any) (string, error) {
	if raw, ok := doc["version"]; ok {
		version, isString := raw.(string)
		if !isString || version == "" {
			return "", invalid("version is not a string")
		}
		return version, nil
	}

	byKind, ok := doc["checkpoints"].(map[string]any)
	if !ok {
		return Version104, nil
	}
	for _, inner := range byKind {
		files, ok := inner.(map[string]any)
		if !ok {
			continue
		}
		for _, leaf := range files {
			if _, isObject := leaf.(map[string]any); isObject {
				return Version103, nil
			}
			return Version104, nil
		}
	}
	return Version104, nil
}

// DecodeCurrent validates and decodes a 1.0.5 document.
func DecodeCurrent(data []byte, kinds []metrics.Kind) (*activity.Store, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return decodeCurrent(doc, data, kinds)
}

func decodeCurrent(doc map[string]any, data []byte, kinds []metrics.Kind) (*activity.Store, error) {
	if err := ValidateCheckpoints(doc["checkpoints"], kinds); err != nil {
		return nil, err
	}
	if err := ValidateDailyActivity(doc["activityOverTime"], kinds); err != nil {
		return nil, err
	}

	store := activity.NewStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, invalid("decode current document: %v", err)
	}
	store.SchemaVersion = activity.SchemaVersion
	return store, nil
}

// DecodeLegacy validates a legacy document against the shape of its inferred
// version and migrates it step by step to the current schema. It returns
// the version it detected.
func DecodeLegacy(data []byte, kinds []metrics.Kind) (*activity.Store, string, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, "", err
	}

	version, err := DetectLegacyVersion(doc)
	if err != nil {
		return nil, "", err
	}

	store, err := MigrateToCurrent(doc, data, version, kinds)
	if err != nil {
		return nil, version, err
	}
	return store, version, nil
}

// MigrateToCurrent runs the migration chain for a document of the given
// version. The generic form is used for validation and data for decoding.
func MigrateToCurrent(doc map[string]any, data []byte, version string, kinds []metrics.Kind) (*activity.Store, error) {
	switch version {
	case Version105:
		return decodeCurrent(doc, data, kinds)

	case Version104:
		if err := ValidateLegacy104Checkpoints(orEmpty(doc["checkpoints"]), kinds); err != nil {
			return nil, err
		}
		if err := ValidateLegacyActivity(orEmpty(doc["activityOverTime"]), kinds); err != nil {
			return nil, err
		}
		var legacy Legacy104
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, invalid("decode 1.0.4 document: %v", err)
		}
		return Migrate104To105(&legacy, kinds), nil

	case Version103:
		if err := ValidateLegacy103Checkpoints(orEmpty(doc["checkpoints"]), kinds); err != nil {
			return nil, err
		}
		if err := ValidateLegacyActivity(orEmpty(doc["activityOverTime"]), kinds); err != nil {
			return nil, err
		}
		var legacy Legacy103
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, invalid("decode 1.0.3 document: %v", err)
		}
		return Migrate104To105(Migrate103To104(&legacy), kinds), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
}

// orEmpty lets a legacy document omit one of its tables.
func orEmpty(raw any) any {
	if raw == nil {
		return map[string]any{}
	}
	return raw
}
