package config

import (
	"fmt"
	"net/url"

	"github.com/robotalks/gasbridge/pkg/mavlink"
	"github.com/robotalks/gasbridge/pkg/sensor"
)

// Validate checks the configuration and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	problem := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	ports := make(map[string]string)
	usePort := func(owner, port string) {
		if port == "" {
			return
		}
		if other, ok := ports[port]; ok {
			problem("%s: port %s already used by %s", owner, port, other)
			return
		}
		ports[port] = owner
	}

	if len(c.EnabledSensors()) == 0 {
		problem("no sensor configured")
	}
	names := make(map[string]bool)
	for n, s := range c.Sensors {
		owner := fmt.Sprintf("sensors[%d]", n)
		if s.Name == "" {
			problem("%s: name required", owner)
		} else {
			owner = "sensor " + s.Name
			if names[s.Name] {
				problem("%s: duplicated name", owner)
			}
			names[s.Name] = true
		}
		if s.Disabled {
			continue
		}
		if s.Port == "" {
			problem("%s: port required", owner)
		}
		usePort(owner, s.Port)
		if s.Baud <= 0 {
			problem("%s: baud required", owner)
		}
		for _, ch := range s.Channels {
			if !sensor.KnownChannel(ch) {
				problem("%s: unknown channel %q", owner, ch)
			} else if tag := ch + s.Name; len(tag) > mavlink.NameLen {
				problem("%s: telemetry name %q longer than %d", owner, tag, mavlink.NameLen)
			}
		}
	}

	if c.Link.Port == "" {
		problem("link: port required")
	}
	usePort("link", c.Link.Port)
	if c.Link.Baud <= 0 {
		problem("link: baud required")
	}
	if c.Link.SystemID < 1 || c.Link.SystemID > 255 {
		problem("link: system_id must be 1..255, got %d", c.Link.SystemID)
	}
	if c.Link.ComponentID < 1 || c.Link.ComponentID > 255 {
		problem("link: component_id must be 1..255, got %d", c.Link.ComponentID)
	}
	if c.Link.HeartbeatInterval <= 0 {
		problem("link: heartbeat_interval must be positive")
	}

	if c.OutputDirectory == "" {
		problem("output_directory required")
	}
	if c.BacklogSize <= 0 {
		problem("backlog_size must be positive")
	}
	if c.StatusInterval <= 0 {
		problem("status_interval must be positive")
	}
	if b := c.Backoff.Sensor; b.Initial <= 0 || b.Max < b.Initial {
		problem("backoff.sensor: need 0 < initial <= max")
	}
	if b := c.Backoff.Link; b.Initial <= 0 || b.Max < b.Initial {
		problem("backoff.link: need 0 < initial <= max")
	}

	if c.Mirror.LoRaPort != "" {
		usePort("lora mirror", c.Mirror.LoRaPort)
		if c.Mirror.LoRaBaud <= 0 {
			problem("mirror: lora_baud required")
		}
	}
	if c.Mirror.MQTTURL != "" {
		if u, err := url.Parse(c.Mirror.MQTTURL); err != nil || u.Host == "" {
			problem("mirror: invalid mqtt_url %q", c.Mirror.MQTTURL)
		}
	}

	if len(errs) > 0 {
		return NewError(errs...)
	}
	return nil
}
