package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pendctl/internal/controller"
	"github.com/san-kum/pendctl/internal/rtproc"
)

const (
	DefaultDeadlineUS = 2000
	DefaultPeriodUS   = 1000
)

// DefaultGains is the feedback matrix the stock cart-pole is tuned with.
var DefaultGains = []float64{-10.0, -51.5393, 356.8637, 154.4146}

type Config struct {
	FeedbackGains []float64       `yaml:"feedback_gains"`
	DeadlineUS    uint            `yaml:"deadline_us"`
	PeriodUS      uint            `yaml:"update_period_us"`
	AutoStart     bool            `yaml:"auto_start"`
	Proc          rtproc.Settings `yaml:"proc_settings"`
	Plant         PlantConfig     `yaml:"plant"`
}

// PlantConfig is the initial state of the simulated plant.
type PlantConfig struct {
	CartPosition float64 `yaml:"cart_position"`
	CartVelocity float64 `yaml:"cart_velocity"`
	PoleAngle    float64 `yaml:"pole_angle"`
	PoleVelocity float64 `yaml:"pole_velocity"`
}

func DefaultConfig() *Config {
	gains := make([]float64, len(DefaultGains))
	copy(gains, DefaultGains)
	return &Config{
		FeedbackGains: gains,
		DeadlineUS:    DefaultDeadlineUS,
		PeriodUS:      DefaultPeriodUS,
		Plant: PlantConfig{
			PoleAngle: 0.01,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the controller node must not start
// with. Called at the configure transition; the node stays unconfigured
// on error.
func (c *Config) Validate() error {
	if len(c.FeedbackGains) != controller.GainCount {
		return fmt.Errorf("config: need %d feedback gains, got %d", controller.GainCount, len(c.FeedbackGains))
	}
	if c.DeadlineUS == 0 {
		return fmt.Errorf("config: deadline_us must be positive")
	}
	if c.PeriodUS == 0 {
		return fmt.Errorf("config: update_period_us must be positive")
	}
	return nil
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineUS) * time.Microsecond
}

func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodUS) * time.Microsecond
}

// InitialState returns the configured plant starting point.
func (c *Config) InitialState() controller.State {
	return controller.State{
		CartPosition: c.Plant.CartPosition,
		CartVelocity: c.Plant.CartVelocity,
		PoleAngle:    c.Plant.PoleAngle,
		PoleVelocity: c.Plant.PoleVelocity,
	}
}
