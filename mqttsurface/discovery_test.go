package mqttsurface

import "testing"

func TestSafeIDNormalizes(t *testing.T) {
	cases := map[string]string{
		"Keeson Bed":    "keeson_bed",
		"AA:BB:CC:DD":   "aa_bb_cc_dd",
		"  spaced  ":    "spaced",
		"already_safe":  "already_safe",
	}
	for in, want := range cases {
		if got := safeID(in); got != want {
			t.Errorf("safeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiscoveryTopicShape(t *testing.T) {
	got := DiscoveryTopic("Keeson", "aabbccddeeff", EntityConfig{Component: "cover", Description: "Head Angle"})
	want := "homeassistant/cover/keeson/aabbccddeeff_head_angle/config"
	if got != want {
		t.Fatalf("DiscoveryTopic = %q, want %q", got, want)
	}
}

func TestDiscoveryTopicPrefersExplicitTag(t *testing.T) {
	got := DiscoveryTopic("Keeson", "aabbccddeeff", EntityConfig{Component: "sensor", Tag: "batt", Description: "Battery Level"})
	want := "homeassistant/sensor/keeson/aabbccddeeff_batt/config"
	if got != want {
		t.Fatalf("DiscoveryTopic = %q, want %q", got, want)
	}
}

func TestDiscoveryPayloadIncludesDeviceBlock(t *testing.T) {
	payload := DiscoveryPayload("Living Room Bed", "Keeson", "aabbccddeeff", EntityConfig{
		Component:   "cover",
		Description: "Head Angle",
		Extra:       map[string]any{"device_class": "awning"},
	})

	if payload["unique_id"] != "living_room_bed_head_angle" {
		t.Fatalf("unexpected unique_id: %v", payload["unique_id"])
	}
	if payload["device_class"] != "awning" {
		t.Fatalf("expected Extra fields to be merged, got %v", payload)
	}
	device, ok := payload["device"].(map[string]any)
	if !ok {
		t.Fatalf("expected device block, got %v", payload["device"])
	}
	ids, ok := device["identifiers"].([]string)
	if !ok || len(ids) != 1 || ids[0] != "aabbccddeeff" {
		t.Fatalf("expected device identifiers to be [stableAddress], got %v", device["identifiers"])
	}
}

func TestHostFromProxyStatusTopic(t *testing.T) {
	if got := hostFromProxyStatusTopic("smartbedmqtt", "smartbedmqtt/proxy/bedroom-proxy/status"); got != "bedroom-proxy" {
		t.Fatalf("expected host bedroom-proxy, got %q", got)
	}
	if got := hostFromProxyStatusTopic("smartbedmqtt", "smartbedmqtt/health"); got != "" {
		t.Fatalf("expected empty host for unrelated topic, got %q", got)
	}
}
