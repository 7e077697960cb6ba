// Package config loads and validates the pipeline's YAML configuration.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/helios-quant/pairtrade/pkg/errors"
)

// Duration is a time.Duration that decodes YAML strings like "10s".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}

		*d = Duration(parsed)

		return nil
	}

	var nanos int64
	if err := value.Decode(&nanos); err != nil {
		return err
	}

	*d = Duration(nanos)

	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// VenueConfig is the connection to the perpetual-futures venue.
type VenueConfig struct {
	Host       string   `yaml:"host" json:"host" jsonschema:"title=Host,description=Venue REST API base URL" validate:"required,url"`
	APIKey     string   `yaml:"api_key" json:"api_key" jsonschema:"title=API Key,description=Venue API key"`
	Passphrase string   `yaml:"passphrase" json:"passphrase" jsonschema:"title=Passphrase,description=Venue API passphrase"`
	Timeout    Duration `yaml:"timeout" json:"timeout" jsonschema:"title=Timeout,description=HTTP request timeout"`
}

// RedisConfig is the optional sync-cycle lease backend. An empty Addr runs
// every cycle unlocked.
type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr" jsonschema:"title=Address,description=Redis host and port"`
	Password string   `yaml:"password" json:"password" jsonschema:"title=Password,description=Redis password"`
	DB       int      `yaml:"db" json:"db" jsonschema:"title=DB,description=Redis database number"`
	LeaseTTL Duration `yaml:"lease_ttl" json:"lease_ttl" jsonschema:"title=Lease TTL,description=How long a cycle lease is held before expiry"`
}

// ExecutionConfig overrides the order execution policy. Zero values fall back
// to the production defaults.
type ExecutionConfig struct {
	NotionalUSD    float64  `yaml:"notional_usd" json:"notional_usd" jsonschema:"title=Notional USD,description=Total position size across both legs,minimum=0" validate:"gte=0"`
	LimitFee       string   `yaml:"limit_fee" json:"limit_fee" jsonschema:"title=Limit Fee,description=Fixed limit fee sent with every order"`
	OrderExpiry    Duration `yaml:"order_expiry" json:"order_expiry" jsonschema:"title=Order Expiry,description=How far in the future each order expires"`
	PollInterval   Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"title=Poll Interval,description=Pending-order barrier re-poll interval"`
	PendingTimeout Duration `yaml:"pending_timeout" json:"pending_timeout" jsonschema:"title=Pending Timeout,description=Upper bound on the pending-order barrier wait"`
	SettleDelay    Duration `yaml:"settle_delay" json:"settle_delay" jsonschema:"title=Settle Delay,description=Post-submission wait for venue account state"`
}

// Config is the full pipeline configuration.
type Config struct {
	DatabasePath string          `yaml:"database_path" json:"database_path" jsonschema:"title=Database Path,description=Path to the DuckDB database file" validate:"required"`
	BaseSymbol   string          `yaml:"base_symbol" json:"base_symbol" jsonschema:"title=Base Symbol,description=Symbol of the long leg of every pair"`
	Venue        VenueConfig     `yaml:"venue" json:"venue" jsonschema:"title=Venue"`
	Redis        RedisConfig     `yaml:"redis" json:"redis" jsonschema:"title=Redis"`
	Execution    ExecutionConfig `yaml:"execution" json:"execution" jsonschema:"title=Execution"`
}

// DefaultConfig returns the configuration used when a field is omitted.
func DefaultConfig() Config {
	return Config{
		DatabasePath: "pairtrade.db",
		BaseSymbol:   "ETH",
		Venue: VenueConfig{
			Host:    "https://api.dydx.exchange",
			Timeout: Duration(10 * time.Second),
		},
		Redis: RedisConfig{
			LeaseTTL: Duration(5 * time.Minute),
		},
	}
}

// Load reads, defaults and validates a YAML config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %q", path)
	}

	return Parse(raw)
}

// Parse decodes YAML config bytes, filling omitted fields from the defaults.
func Parse(raw []byte) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the struct-level constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	return nil
}

// GenerateSchemaJSON renders the configuration's JSON schema, for editor
// completion against config files.
func (c *Config) GenerateSchemaJSON() (string, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(c)
	schema.Title = "pairtrade-config"
	schema.Description = "Configuration schema for the pairtrade pipeline"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to encode schema", err)
	}

	return string(schemaBytes), nil
}
