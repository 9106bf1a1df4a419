// Command smartbedmqtt bridges an MQTT home-automation bus to
// BLE-adjustable-bed controllers reachable through network-attached
// BLE proxies.
//
// Usage:
//
//	smartbedmqtt -config /data/options.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smartbedmqtt/ble-bridge/config"
	"github.com/smartbedmqtt/ble-bridge/mqttsurface"
	"github.com/smartbedmqtt/ble-bridge/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "/data/options.yaml", "path to the add-on configuration file")
	namespace := flag.String("namespace", "smartbedmqtt", "MQTT topic root namespace")
	clientID := flag.String("mqtt-client-id", "smartbedmqtt", "MQTT client ID")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log := newLogger(*logLevel)

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return supervisor.ExitOther
	}

	mqttCfg := mqttsurface.Config{
		Broker:    brokerURL(cfg.MQTT.Host, cfg.MQTT.Port),
		ClientID:  uniqueClientID(*clientID),
		Username:  cfg.MQTT.User,
		Password:  cfg.MQTT.Password,
		Namespace: *namespace,
	}

	sup := supervisor.New(cfg, mqttCfg, nil, log.WithField("component", "supervisor"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return sup.Run(ctx)
}

// uniqueClientID appends a short random suffix to base so a restarted
// process never collides with a still-draining MQTT session under the
// same client ID (the broker would otherwise disconnect whichever side
// connects second).
func uniqueClientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

func brokerURL(host string, port int) string {
	if port == 0 {
		port = 1883
	}
	return fmt.Sprintf("tcp://%s:%d", host, port)
}

func newLogger(level string) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
	return logrus.NewEntry(log)
}
