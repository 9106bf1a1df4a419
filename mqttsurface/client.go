package mqttsurface

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/types"
)

const (
	qos             byte = 1
	discoveryDebounce = 15 * time.Second
)

// Client is the bridge's MQTT surface: retained availability with
// last-will, the health heartbeat and degraded flag, proxy
// status/command/reboot topics, and Home Assistant discovery
// publication. It implements health.Publisher.
type Client struct {
	client mqtt.Client
	topics Topics
	log    *logrus.Entry

	connMu sync.Mutex
	closed bool

	proxyStatusMu sync.RWMutex
	onProxyStatus func(host string, payload []byte)

	discoveryMu        sync.Mutex
	republishDiscovery func()
	debounceTimer      *time.Timer
}

// Config configures a new Client.
type Config struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	Namespace string
}

// New dials broker and registers the retained availability last-will
// before the connection completes, so any unclean disconnect is
// observed by subscribers immediately.
func New(ctx context.Context, cfg Config, log *logrus.Entry) (*Client, error) {
	topics := Topics{Namespace: cfg.Namespace}

	c := &Client{topics: topics, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetWill(topics.Status(), "offline", qos, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		if token.Error() != nil {
			return nil, fmt.Errorf("mqttsurface: connect: %w", token.Error())
		}
	}

	return c, nil
}

func (c *Client) onConnect(client mqtt.Client) {
	c.publishRaw(c.topics.Status(), "online", true)

	token := client.Subscribe(c.topics.ProxyStatusWildcard(), qos, c.handleProxyStatus)
	token.Wait()
	if token.Error() != nil && c.log != nil {
		c.log.WithError(token.Error()).Warn("mqttsurface: failed to subscribe to proxy status topics")
	}

	token = client.Subscribe(discoveryStatusTopic, qos, c.handleHomeAssistantStatus)
	token.Wait()
	if token.Error() != nil && c.log != nil {
		c.log.WithError(token.Error()).Warn("mqttsurface: failed to subscribe to homeassistant/status")
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	if c.log != nil {
		c.log.WithError(err).Warn("mqttsurface: connection lost")
	}
}

// OnProxyStatus registers the handler invoked for every message on
// <ns>/proxy/<host>/status.
func (c *Client) OnProxyStatus(handler func(host string, payload []byte)) {
	c.proxyStatusMu.Lock()
	defer c.proxyStatusMu.Unlock()
	c.onProxyStatus = handler
}

// OnHomeAssistantStatusOnline registers the callback invoked, after a
// 15s debounce, whenever homeassistant/status reports "online" — the
// signal that Home Assistant wants discovery republished.
func (c *Client) OnHomeAssistantStatusOnline(republish func()) {
	c.discoveryMu.Lock()
	defer c.discoveryMu.Unlock()
	c.republishDiscovery = republish
}

func (c *Client) handleProxyStatus(client mqtt.Client, msg mqtt.Message) {
	host := hostFromProxyStatusTopic(c.topics.Namespace, msg.Topic())
	if host == "" {
		return
	}
	c.proxyStatusMu.RLock()
	handler := c.onProxyStatus
	c.proxyStatusMu.RUnlock()
	if handler != nil {
		handler(host, msg.Payload())
	}
}

func hostFromProxyStatusTopic(namespace, topic string) string {
	prefix := namespace + "/proxy/"
	suffix := "/status"
	if len(topic) <= len(prefix)+len(suffix) || topic[:len(prefix)] != prefix {
		return ""
	}
	if topic[len(topic)-len(suffix):] != suffix {
		return ""
	}
	return topic[len(prefix) : len(topic)-len(suffix)]
}

func (c *Client) handleHomeAssistantStatus(client mqtt.Client, msg mqtt.Message) {
	if string(msg.Payload()) != "online" {
		return
	}

	c.discoveryMu.Lock()
	defer c.discoveryMu.Unlock()
	if c.republishDiscovery == nil {
		return
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	republish := c.republishDiscovery
	c.debounceTimer = time.AfterFunc(discoveryDebounce, republish)
}

// PublishHealth satisfies health.Publisher: publishes the JSON
// heartbeat to <ns>/health.
func (c *Client) PublishHealth(snapshot types.HealthSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("mqttsurface: marshal health snapshot: %w", err)
	}
	return c.publishRaw(c.topics.Health(), data, false)
}

// PublishDeviceHealth publishes a per-device snapshot to
// <ns>/health/<deviceId>.
func (c *Client) PublishDeviceHealth(deviceID string, diag types.DeviceDiagnostics) error {
	data, err := json.Marshal(diag)
	if err != nil {
		return fmt.Errorf("mqttsurface: marshal device diagnostics: %w", err)
	}
	return c.publishRaw(c.topics.DeviceHealth(deviceID), data, false)
}

// PublishDegraded satisfies health.Publisher: publishes the retained
// <ns>/status/degraded boolean.
func (c *Client) PublishDegraded(degraded bool) error {
	payload := "false"
	if degraded {
		payload = "true"
	}
	return c.publishRaw(c.topics.Degraded(), payload, true)
}

// PublishProxyCommand satisfies health.Publisher: publishes payload
// (typically "REBOOT") to <ns>/proxy/<host>/command, then a
// reboot_requested audit breadcrumb.
func (c *Client) PublishProxyCommand(host, payload string) error {
	if err := c.publishRaw(c.topics.ProxyCommand(host), payload, false); err != nil {
		return err
	}
	audit, _ := json.Marshal(map[string]any{"host": host, "requestedAt": nil})
	return c.publishRaw(c.topics.ProxyRebootRequested(host), audit, false)
}

// PublishProxyBreadcrumb satisfies health.Publisher: publishes the
// reboot_suppressed audit breadcrumb while a host is cooling down.
func (c *Client) PublishProxyBreadcrumb(host string, remainingSeconds int64) error {
	data, err := json.Marshal(map[string]any{"cooldownRemainingSec": remainingSeconds})
	if err != nil {
		return err
	}
	return c.publishRaw(c.topics.ProxyRebootSuppressed(host), data, false)
}

// PublishDiscovery publishes one entity's Home Assistant discovery
// config document.
func (c *Client) PublishDiscovery(manufacturer, stableAddress string, entity EntityConfig, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mqttsurface: marshal discovery payload: %w", err)
	}
	return c.publishRaw(DiscoveryTopic(manufacturer, stableAddress, entity), data, false)
}

func (c *Client) publishRaw(topic string, payload any, retained bool) error {
	c.connMu.Lock()
	closed := c.closed
	c.connMu.Unlock()
	if closed {
		return fmt.Errorf("mqttsurface: client is closed")
	}

	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker. The offline availability message
// is never published here: the broker's last-will (set on Connect)
// owns that transition exclusively, so a live process never announces
// itself offline.
func (c *Client) Close() error {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return nil
	}
	c.closed = true
	c.connMu.Unlock()

	c.client.Disconnect(250)
	return nil
}
