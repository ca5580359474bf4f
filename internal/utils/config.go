package utils

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/printer"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/queue"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/store"
)

const (
	DefaultConfigFile = "config/config.json"
	EnvPrefix         = "PRINTQ_"

	defaultAPIURL = "https://api.perfect-menu.it"
	defaultWSURL  = "wss://ws.perfect-menu.it/agent"
)

// DefaultConfig is what an empty config file and environment resolve to.
func DefaultConfig() model.Config {
	return model.Config{
		RestaurantName: "Perfect Menu",
		Currency:       "₦",
		Timezone:       "Local",
		RenderMode:     model.RenderModeText,
		Printer: model.Printer{
			Name:      "Receipt",
			Port:      printer.DefaultPort,
			TimeoutMS: int(printer.DefaultTimeout / time.Millisecond),
			Columns:   escpos.DefaultColumns,
			Dots:      escpos.DefaultDots,
		},
		Queue: model.QueueConfig{
			MaxAttempts: queue.DefaultMaxAttempts,
			BatchSize:   queue.DefaultBatchSize,
			Interval:    model.Duration(queue.DefaultInterval),
			Lease:       model.Duration(queue.DefaultLease),
		},
		Database: model.DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    store.DefaultSQLiteDSN,
		},
		HTTP: model.HTTPConfig{Addr: ":8080"},
		Agent: model.AgentConfig{
			APIURL: defaultAPIURL,
			WSURL:  defaultWSURL,
		},
		Log: model.LogConfig{Level: "info"},
	}
}

// LoadConfig layers the JSON file over the defaults and the PRINTQ_*
// environment over both. A missing file is not an error.
func LoadConfig(configFile string) (model.Config, error) {
	config, err := LoadConfigFile(configFile)
	if err != nil {
		return config, err
	}
	if err := env.Parse(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return config, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	return config, nil
}

// LoadConfigFile is LoadConfig without the environment, for callers that
// write the result back to disk.
func LoadConfigFile(configFile string) (model.Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return config, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse %s: %w", configFile, err)
		}
	}
	return config, nil
}

func SaveConfig(configFile string, config model.Config) error {
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configFile, data, 0644)
}

// ValidatePrinter reports an unusable printer or lease setting as a
// ConfigurationError.
func ValidatePrinter(config model.Config) error {
	if strings.TrimSpace(config.Printer.IP) == "" {
		return &queue.ConfigurationError{Field: "printer host", Reason: "is not set (printer.ip or " + EnvPrefix + "PRINTER_HOST)"}
	}
	if config.Printer.Port <= 0 || config.Printer.Port > 65535 {
		return &queue.ConfigurationError{Field: "printer port", Reason: fmt.Sprintf("%d is out of range", config.Printer.Port)}
	}

	// A lease that can expire mid-send lets a second worker print the job.
	timeout := config.Printer.Timeout()
	if timeout <= 0 {
		timeout = printer.DefaultTimeout
	}
	lease := config.Queue.Lease.Std()
	if lease <= 0 {
		lease = queue.DefaultLease
	}
	if lease <= timeout {
		return &queue.ConfigurationError{
			Field:  "queue lease",
			Reason: fmt.Sprintf("%s must be longer than the printer timeout %s", lease, timeout),
		}
	}
	return nil
}

// Location resolves the configured timezone for receipt dates.
func Location(config model.Config) (*time.Location, error) {
	switch config.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}
	return loc, nil
}

// ProcessorConfig maps the file config onto the queue processor.
func ProcessorConfig(config model.Config) queue.Config {
	return queue.Config{
		Host:        config.Printer.IP,
		Port:        config.Printer.Port,
		MaxAttempts: config.Queue.MaxAttempts,
		BatchSize:   config.Queue.BatchSize,
		Cooldown:    config.Queue.Cooldown.Std(),
		Lease:       config.Queue.Lease.Std(),
	}
}

// SetupConfig asks for the values a fresh install needs and returns the
// completed config. Empty answers keep the current value.
func SetupConfig(in io.Reader, out io.Writer, config model.Config) model.Config {
	reader := bufio.NewReader(in)
	ask := func(label, current string) string {
		if current != "" {
			fmt.Fprintf(out, "%s (default: %s): ", label, current)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		answer, _ := reader.ReadString('\n')
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer
		}
		return current
	}
	askInt := func(label string, current int) int {
		answer := ask(label, strconv.Itoa(current))
		n, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintf(out, "  %q is not a number, keeping %d\n", answer, current)
			return current
		}
		return n
	}

	fmt.Fprintln(out, "--- Initial Setup ---")
	config.RestaurantName = ask("Restaurant name", config.RestaurantName)
	config.Currency = ask("Currency symbol", config.Currency)
	config.Printer.IP = ask("Printer IP", config.Printer.IP)
	config.Printer.Port = askInt("Printer port", config.Printer.Port)
	config.Printer.Columns = askInt("Characters per line (42 for 80mm, 32 for 58mm)", config.Printer.Columns)
	config.Agent.APIURL = ask("Enter API URL", config.Agent.APIURL)
	config.Agent.WSURL = ask("Enter WebSocket URL", config.Agent.WSURL)
	config.Agent.APIKey = ask("Enter Server API Key", config.Agent.APIKey)
	config.Agent.TenantID = askInt("Enter Tenant ID", config.Agent.TenantID)
	config.Agent.RestaurantID = askInt("Enter Restaurant ID", config.Agent.RestaurantID)
	return config
}
