// Package config resolves the bridge configuration from a YAML file and
// the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GASBRIDGE_LINK_PORT.
const EnvPrefix = "GASBRIDGE"

// SensorConfig configures one gas sensor.
type SensorConfig struct {
	Name     string   `mapstructure:"name"`
	Port     string   `mapstructure:"port"`
	Baud     int      `mapstructure:"baud"`
	Channels []string `mapstructure:"channels"`
	Disabled bool     `mapstructure:"disabled"`

	// RequireChecksum rejects frames without the *HH suffix.
	RequireChecksum bool `mapstructure:"require_checksum"`
}

// LinkConfig configures the flight controller link.
type LinkConfig struct {
	Port              string        `mapstructure:"port"`
	Baud              int           `mapstructure:"baud"`
	SystemID          int           `mapstructure:"system_id"`
	ComponentID       int           `mapstructure:"component_id"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// RecorderConfig tunes the log writer.
type RecorderConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	MaxFileBytes  int64         `mapstructure:"max_file_bytes"`
	MaxFileAge    time.Duration `mapstructure:"max_file_age"`
	PendingLimit  int           `mapstructure:"pending_limit"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	SampleCSV     bool          `mapstructure:"sample_csv"`
}

// BackoffConfig bounds reconnect delays.
type BackoffConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
}

// BackoffsConfig has backoffs per channel role.
type BackoffsConfig struct {
	Sensor BackoffConfig `mapstructure:"sensor"`
	Link   BackoffConfig `mapstructure:"link"`
}

// MirrorConfig configures optional downlinks of decoded samples.
type MirrorConfig struct {
	MQTTURL      string `mapstructure:"mqtt_url"`
	MQTTClientID string `mapstructure:"mqtt_client_id"`
	LoRaPort     string `mapstructure:"lora_port"`
	LoRaBaud     int    `mapstructure:"lora_baud"`
}

// Config is the resolved configuration.
type Config struct {
	Sensors         []SensorConfig `mapstructure:"sensors"`
	Link            LinkConfig     `mapstructure:"link"`
	OutputDirectory string         `mapstructure:"output_directory"`
	Recorder        RecorderConfig `mapstructure:"recorder"`
	BacklogSize     int            `mapstructure:"backlog_size"`
	Backoff         BackoffsConfig `mapstructure:"backoff"`
	StatusInterval  time.Duration  `mapstructure:"status_interval"`
	Mirror          MirrorConfig   `mapstructure:"mirror"`
}

// EnabledSensors returns sensors not disabled.
func (c *Config) EnabledSensors() []SensorConfig {
	var out []SensorConfig
	for _, s := range c.Sensors {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

var defaults = map[string]interface{}{
	"link.heartbeat_interval": "1s",
	"recorder.queue_size":     4096,
	"recorder.max_file_bytes": 16 << 20,
	"recorder.max_file_age":   "1h",
	"recorder.pending_limit":  10000,
	"recorder.retry_interval": "1s",
	"recorder.sample_csv":     true,
	"backlog_size":            512,
	"backoff.sensor.initial":  "500ms",
	"backoff.sensor.max":      "30s",
	"backoff.link.initial":    "200ms",
	"backoff.link.max":        "5s",
	"status_interval":         "30s",
	"mirror.lora_baud":        57600,
}

// bound keys have no default but still take environment overrides.
var bound = []string{
	"link.port",
	"link.baud",
	"link.system_id",
	"link.component_id",
	"output_directory",
	"mirror.mqtt_url",
	"mirror.mqtt_client_id",
	"mirror.lora_port",
}

// legacyEnv maps keys to the flat environment names used by earlier
// deployments.
var legacyEnv = map[string]string{
	"link.port":         "MAVLINK_PORT",
	"link.baud":         "MAVLINK_BAUD",
	"link.system_id":    "MAVLINK_SYSTEM_ID",
	"link.component_id": "MAVLINK_COMPONENT_ID",
	"output_directory":  "OUTPUT_DIRECTORY",
}

// legacySensors are configured from SENSOR_<X>_PORT/BAUD/ENABLE when the
// configuration has no sensors list.
var legacySensors = []string{"A", "B"}

var configFile = os.Getenv(EnvPrefix + "_CONFIG")

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "Configuration file (YAML), environment overrides with "+EnvPrefix+"_ prefix.")
}

// LoadDefault loads from the file given by -config, if any.
func LoadDefault() (*Config, error) {
	return Load(configFile)
}

// Load resolves the configuration from an optional file and the
// environment, and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range bound {
		envs := []string{envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			envs = append(envs, legacy)
		}
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}
	for _, name := range legacySensors {
		prefix := "legacy.sensor_" + strings.ToLower(name)
		for _, field := range []string{"port", "baud", "enable"} {
			key := prefix + "." + field
			if err := v.BindEnv(key, envName(strings.TrimPrefix(key, "legacy.")), "SENSOR_"+name+"_"+strings.ToUpper(field)); err != nil {
				return nil, err
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewError(fmt.Errorf("read %s: %w", path, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewError(fmt.Errorf("decode: %w", err))
	}
	if len(cfg.Sensors) == 0 {
		cfg.Sensors = legacySensorConfigs(v)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func legacySensorConfigs(v *viper.Viper) (sensors []SensorConfig) {
	for _, name := range legacySensors {
		prefix := "legacy.sensor_" + strings.ToLower(name) + "."
		port := v.GetString(prefix + "port")
		if port == "" {
			continue
		}
		sc := SensorConfig{Name: name, Port: port, Baud: v.GetInt(prefix + "baud")}
		if v.IsSet(prefix+"enable") && !v.GetBool(prefix+"enable") {
			sc.Disabled = true
		}
		sensors = append(sensors, sc)
	}
	return
}

// DefaultChannels are reported when a sensor doesn't list channels.
var DefaultChannels = []string{"CH4", "C2H6"}

func (c *Config) applyDefaults() {
	for n := range c.Sensors {
		s := &c.Sensors[n]
		if len(s.Channels) == 0 {
			s.Channels = append([]string(nil), DefaultChannels...)
		}
		for i, ch := range s.Channels {
			s.Channels[i] = strings.ToUpper(strings.TrimSpace(ch))
		}
	}
}
