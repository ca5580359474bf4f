package model

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// --- Configuration Structures ---

type Config struct {
	AppVersion     string `json:"appVersion,omitempty"`
	RestaurantName string `json:"restaurantName" env:"RESTAURANT_NAME"`
	Currency       string `json:"currency" env:"CURRENCY"`
	Timezone       string `json:"timezone" env:"TIMEZONE"`
	RenderMode     string `json:"renderMode" env:"RENDER_MODE"`

	Printer  Printer        `json:"printer" envPrefix:"PRINTER_"`
	Queue    QueueConfig    `json:"queue" envPrefix:"QUEUE_"`
	Database DatabaseConfig `json:"database" envPrefix:"DB_"`
	HTTP     HTTPConfig     `json:"http" envPrefix:"HTTP_"`
	Agent    AgentConfig    `json:"agent" envPrefix:"AGENT_"`
	Log      LogConfig      `json:"log" envPrefix:"LOG_"`
}

type Printer struct {
	Name        string `json:"name" env:"NAME"`
	IP          string `json:"ip" env:"HOST"`
	Port        int    `json:"port" env:"PORT"`
	Description string `json:"description,omitempty"`
	TimeoutMS   int    `json:"timeoutMs" env:"TIMEOUT_MS"`
	Columns     int    `json:"columns" env:"COLUMNS"`
	Dots        int    `json:"dots" env:"DOTS"` // raster width, 576 for 80mm
	AgentKey    string `json:"agent_key,omitempty" env:"AGENT_KEY"`
}

// Timeout is the hard wall-clock budget for one transport operation.
func (p Printer) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

type QueueConfig struct {
	MaxAttempts int      `json:"maxAttempts" env:"MAX_ATTEMPTS"`
	BatchSize   int      `json:"batchSize" env:"BATCH_SIZE"`
	Interval    Duration `json:"interval" env:"INTERVAL"`
	Cooldown    Duration `json:"cooldown" env:"COOLDOWN"`
	Lease       Duration `json:"lease" env:"LEASE"`
	CheckStatus bool     `json:"checkStatus" env:"CHECK_STATUS"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" env:"DRIVER"`
	DSN    string `json:"dsn" env:"DSN"`
}

type HTTPConfig struct {
	Addr   string `json:"addr" env:"ADDR"`
	Secret string `json:"secret" env:"SECRET"`
}

type AgentConfig struct {
	APIURL       string `json:"apiUrl" env:"API_URL"`
	WSURL        string `json:"wsUrl" env:"WS_URL"`
	APIKey       string `json:"apiKey" env:"API_KEY"`
	TenantID     int    `json:"tenantId" env:"TENANT_ID"`
	RestaurantID int    `json:"restaurantId" env:"RESTAURANT_ID"`
}

type LogConfig struct {
	Level       string `json:"level" env:"LEVEL"`
	Development bool   `json:"development" env:"DEVELOPMENT"`
}

const (
	RenderModeText  = "text"
	RenderModeImage = "image"
)

// Duration reads "10s" style strings from JSON and the environment. Bare
// numbers, quoted or not, are taken as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON accepts a JSON number as well as a string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	return d.UnmarshalText(bytes.Trim(data, `"`))
}
