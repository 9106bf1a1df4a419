package mqttsurface

import "testing"

func TestTopicsShape(t *testing.T) {
	tp := Topics{Namespace: "smartbedmqtt"}

	cases := map[string]string{
		"status":        tp.Status(),
		"degraded":      tp.Degraded(),
		"health":        tp.Health(),
		"deviceHealth":  tp.DeviceHealth("bed-1"),
		"proxyStatus":   tp.ProxyStatus("proxy-1"),
		"proxyCommand":  tp.ProxyCommand("proxy-1"),
		"rebootReq":     tp.ProxyRebootRequested("proxy-1"),
		"rebootSupp":    tp.ProxyRebootSuppressed("proxy-1"),
		"statusWild":    tp.ProxyStatusWildcard(),
	}
	want := map[string]string{
		"status":       "smartbedmqtt/status",
		"degraded":     "smartbedmqtt/status/degraded",
		"health":       "smartbedmqtt/health",
		"deviceHealth": "smartbedmqtt/health/bed-1",
		"proxyStatus":  "smartbedmqtt/proxy/proxy-1/status",
		"proxyCommand": "smartbedmqtt/proxy/proxy-1/command",
		"rebootReq":    "smartbedmqtt/proxy/proxy-1/reboot_requested",
		"rebootSupp":   "smartbedmqtt/proxy/proxy-1/reboot_suppressed",
		"statusWild":   "smartbedmqtt/proxy/+/status",
	}
	for k, w := range want {
		if cases[k] != w {
			t.Errorf("%s = %q, want %q", k, cases[k], w)
		}
	}
}
