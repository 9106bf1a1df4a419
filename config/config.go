package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/smartbedmqtt/ble-bridge/types"
)

const autoDetectToken = "<auto_detect>"

// MQTTConfig is the raw MQTT section of the YAML document, before
// <auto_detect> substitution.
type MQTTConfig struct {
	Host     string `yaml:"mqtt_host"`
	User     string `yaml:"mqtt_user"`
	Password string `yaml:"mqtt_password"`
	Port     int    `yaml:"mqtt_port"`
}

// DeviceConfig is one vendor device list entry.
type DeviceConfig struct {
	Name          string   `yaml:"name"`
	FriendlyName  string   `yaml:"friendlyName"`
	Aliases       string   `yaml:"aliases"`
	Extra         []string `yaml:"extraIdentifiers"`
	StayConnected bool     `yaml:"stayConnected"`
}

// ProxyConfig is one bleProxies list entry.
type ProxyConfig struct {
	Host               string `yaml:"host"`
	Password           string `yaml:"password"`
	EncryptionKey      string `yaml:"encryptionKey"`
	ExpectedServerName string `yaml:"expectedServerName"`
	Port               int    `yaml:"port"`
}

// Config is the add-on's full YAML configuration document.
type Config struct {
	MQTT    MQTTConfig     `yaml:"-"`
	Type    string         `yaml:"type"`
	Devices []DeviceConfig `yaml:"devices"`
	Proxies []ProxyConfig  `yaml:"bleProxies"`
}

// rawConfig mirrors Config's YAML shape with MQTT inlined, since
// yaml.v3 can't unmarshal into an embedded field we also want to
// post-process.
type rawConfig struct {
	MQTTConfig `yaml:",inline"`
	Type       string         `yaml:"type"`
	Devices    []DeviceConfig `yaml:"devices"`
	Proxies    []ProxyConfig  `yaml:"bleProxies"`
}

// Detector resolves <auto_detect> tokens; Load's caller supplies the
// add-on host's actual detection logic (e.g. supervisor API lookup).
type Detector interface {
	DetectMQTTHost() (string, bool)
	DetectMQTTUser() (string, bool)
	DetectMQTTPassword() (string, bool)
}

// fallbackHost is substituted when auto-detection fails entirely.
const fallbackHost = "172.30.32.1"

// Load reads and validates the YAML configuration at path, resolving
// any <auto_detect> tokens via detector.
func Load(path string, detector Detector) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := &Config{
		MQTT:    raw.MQTTConfig,
		Type:    raw.Type,
		Devices: raw.Devices,
		Proxies: raw.Proxies,
	}

	resolveAutoDetect(&cfg.MQTT, detector)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveAutoDetect(mqtt *MQTTConfig, detector Detector) {
	if mqtt.Host == autoDetectToken {
		mqtt.Host = resolveHost(detector)
	}
	if mqtt.User == autoDetectToken {
		if v, ok := detectorOrZero(detector, (Detector).DetectMQTTUser); ok {
			mqtt.User = v
		} else {
			mqtt.User = ""
		}
	}
	if mqtt.Password == autoDetectToken {
		if v, ok := detectorOrZero(detector, (Detector).DetectMQTTPassword); ok {
			mqtt.Password = v
		} else {
			mqtt.Password = ""
		}
	}
}

func resolveHost(detector Detector) string {
	host, ok := detectorOrZero(detector, (Detector).DetectMQTTHost)
	if !ok || host == "" {
		return fallbackHost
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "core-mosquitto"
	}
	return host
}

func detectorOrZero(detector Detector, fn func(Detector) (string, bool)) (string, bool) {
	if detector == nil {
		return "", false
	}
	return fn(detector)
}

// Validate checks required fields, independent of auto-detection.
func (c *Config) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("config: \"type\" is required")
	}
	if len(c.Proxies) == 0 {
		return fmt.Errorf("config: at least one entry in \"bleProxies\" is required")
	}
	for i, p := range c.Proxies {
		if p.Host == "" {
			return fmt.Errorf("config: bleProxies[%d]: \"host\" is required", i)
		}
	}
	if len(c.Devices) == 0 {
		return fmt.Errorf("config: at least one device entry is required")
	}
	for i, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("config: devices[%d]: \"name\" is required", i)
		}
	}
	return nil
}

// BedConfigs converts the device list into types.BedConfig entries.
func (c *Config) BedConfigs() []types.BedConfig {
	beds := make([]types.BedConfig, 0, len(c.Devices))
	for _, d := range c.Devices {
		beds = append(beds, types.BedConfig{
			Name:             d.Name,
			FriendlyName:     d.FriendlyName,
			Aliases:          d.Aliases,
			ExtraIdentifiers: d.Extra,
			StayConnected:    d.StayConnected,
		})
	}
	return beds
}

// ProxyConfigs converts the proxy list into types.ProxyConfig entries.
func (c *Config) ProxyConfigs() []types.ProxyConfig {
	proxies := make([]types.ProxyConfig, 0, len(c.Proxies))
	for _, p := range c.Proxies {
		proxies = append(proxies, types.ProxyConfig{
			Host:               p.Host,
			Port:               p.Port,
			Password:           p.Password,
			EncryptionKey:      p.EncryptionKey,
			ExpectedServerName: p.ExpectedServerName,
		})
	}
	return proxies
}
