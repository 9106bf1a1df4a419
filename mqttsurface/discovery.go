package mqttsurface

import (
	"regexp"
	"strings"
)

// EntityConfig describes one Home Assistant-discoverable entity a
// vendor integration wants to publish. Tag defaults to a normalized
// Description when empty.
type EntityConfig struct {
	Component   string // e.g. "cover", "sensor", "binary_sensor"
	Tag         string
	Description string
	Extra       map[string]any // merged into the discovery payload verbatim
}

var unsafeIDChars = regexp.MustCompile(`[^a-z0-9_]+`)

// safeID lowercases s and replaces any run of non [a-z0-9_] characters
// with a single underscore, matching spec.md §6's <safeId(...)> rule.
func safeID(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	safe := unsafeIDChars.ReplaceAllString(lowered, "_")
	return strings.Trim(safe, "_")
}

// DiscoveryTopic returns the config-topic for one entity, per
// spec.md §6: homeassistant/<component>/<deviceTopic>_<tag>/config.
func DiscoveryTopic(manufacturer, stableAddress string, entity EntityConfig) string {
	deviceTopic := safeID(manufacturer) + "/" + safeID(stableAddress)
	tag := entity.Tag
	if tag == "" {
		tag = entity.Description
	}
	return discoveryPrefix + "/" + entity.Component + "/" + deviceTopic + "_" + safeID(tag) + "/config"
}

// DiscoveryPayload builds the JSON-serializable discovery config
// document for one entity of one device.
func DiscoveryPayload(deviceName, manufacturer, stableAddress string, entity EntityConfig) map[string]any {
	tag := entity.Tag
	if tag == "" {
		tag = entity.Description
	}
	uniqueID := safeID(deviceName) + "_" + safeID(tag)

	payload := map[string]any{
		"name":        entity.Description,
		"unique_id":   uniqueID,
		"object_id":   uniqueID,
		"device": map[string]any{
			"identifiers":  []string{stableAddress},
			"name":         deviceName,
			"manufacturer": manufacturer,
		},
	}
	for k, v := range entity.Extra {
		payload[k] = v
	}
	return payload
}
