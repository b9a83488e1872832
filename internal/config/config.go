// Copyright 2025 Support Chatbot Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Chroma    ChromaConfig    `mapstructure:"chroma"`
	Store     StoreConfig     `mapstructure:"store"`
	Models    ModelsConfig    `mapstructure:"models"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OpenAIConfig contains the OpenAI-compatible API configuration.
// Endpoint may point at any OpenAI-compatible provider (Groq included);
// EmbeddingEndpoint covers providers like Groq that serve chat but no
// embeddings API.
type OpenAIConfig struct {
	APIKey            string `mapstructure:"apikey"`
	Endpoint          string `mapstructure:"endpoint"`
	EmbeddingEndpoint string `mapstructure:"embedding_endpoint"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
}

// ChromaConfig contains ChromaDB configuration
type ChromaConfig struct {
	URL            string `mapstructure:"url"`
	CollectionName string `mapstructure:"collection_name"`
}

// StoreConfig contains the knowledge-base store configuration
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ModelsConfig contains paths to exported classifier artifacts
type ModelsConfig struct {
	Dir               string `mapstructure:"dir"`
	IntentModelFile   string `mapstructure:"intent_model_file"`
	SentimentModeFile string `mapstructure:"sentiment_model_file"`
}

// IntentModelPath returns the full path to the intent model artifact
func (m ModelsConfig) IntentModelPath() string {
	return filepath.Join(m.Dir, m.IntentModelFile)
}

// SentimentModelPath returns the full path to the sentiment model artifact
func (m ModelsConfig) SentimentModelPath() string {
	return filepath.Join(m.Dir, m.SentimentModeFile)
}

// BucketConfig describes one routing bucket and the intents assigned to it
type BucketConfig struct {
	Description string   `mapstructure:"description"`
	CostTier    string   `mapstructure:"cost_tier"`
	Intents     []string `mapstructure:"intents"`
}

// RoutingConfig contains the intent routing table and thresholds
type RoutingConfig struct {
	ConfidenceThreshold float64                 `mapstructure:"confidence_threshold"`
	Buckets             map[string]BucketConfig `mapstructure:"buckets"`
}

// SentimentConfig contains sentiment escalation settings
type SentimentConfig struct {
	NegativeThreshold float64  `mapstructure:"negative_threshold"`
	AngerKeywords     []string `mapstructure:"anger_keywords"`
}

// RetrievalConfig contains retrieval-specific settings
type RetrievalConfig struct {
	TopK                int `mapstructure:"top_k"`
	EmbeddingDimensions int `mapstructure:"embedding_dimensions"`
	QueryCacheSize      int `mapstructure:"query_cache_size"`
}

// LLMConfig contains chat completion settings
type LLMConfig struct {
	Model           string  `mapstructure:"model"`
	EscalationModel string  `mapstructure:"escalation_model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	InputCostPer1M  float64 `mapstructure:"input_cost_per_1m"`
	OutputCostPer1M float64 `mapstructure:"output_cost_per_1m"`
}

// SessionConfig contains session manager configuration
type SessionConfig struct {
	DefaultTTL      int `mapstructure:"default_ttl"`      // minutes
	MaxSessions     int `mapstructure:"max_sessions"`     // LRU cap
	CleanupInterval int `mapstructure:"cleanup_interval"` // minutes
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	EnableHotReload  bool
	Environment      string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		EnableHotReload:  false,
		Environment:      getEnvironment(),
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SUPPORT_BOT")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// OpenAI-compatible API defaults
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.embedding_endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")

	// ChromaDB defaults
	v.SetDefault("chroma.url", "http://chromadb:8000")
	v.SetDefault("chroma.collection_name", "support_kb")

	// Store defaults
	v.SetDefault("store.db_path", "./support.db")

	// Model artifact defaults
	v.SetDefault("models.dir", "./models")
	v.SetDefault("models.intent_model_file", "intent_model.json")
	v.SetDefault("models.sentiment_model_file", "sentiment_model.json")

	// Routing defaults: the full 27-intent table
	v.SetDefault("routing.confidence_threshold", 0.5)
	v.SetDefault("routing.buckets.bucket_a.description", "Zero-cost direct responses")
	v.SetDefault("routing.buckets.bucket_a.cost_tier", "zero")
	v.SetDefault("routing.buckets.bucket_a.intents", []string{
		"check_invoice", "check_payment_methods", "track_order",
		"delivery_options", "check_refund_policy", "check_cancellation_fee",
		"delivery_period", "track_refund",
	})
	v.SetDefault("routing.buckets.bucket_b.description", "Low-cost RAG with small LLM")
	v.SetDefault("routing.buckets.bucket_b.cost_tier", "low")
	v.SetDefault("routing.buckets.bucket_b.intents", []string{
		"cancel_order", "change_order", "place_order", "get_invoice",
		"get_refund", "set_up_shipping_address", "change_shipping_address",
		"create_account", "edit_account", "switch_account", "delete_account",
		"recover_password", "registration_problems",
		"newsletter_subscription", "review",
	})
	v.SetDefault("routing.buckets.bucket_c.description", "High-cost escalation")
	v.SetDefault("routing.buckets.bucket_c.cost_tier", "high")
	v.SetDefault("routing.buckets.bucket_c.intents", []string{
		"complaint", "payment_issue", "contact_customer_service",
		"contact_human_agent",
	})

	// Sentiment escalation defaults
	v.SetDefault("sentiment.negative_threshold", 0.75)
	v.SetDefault("sentiment.anger_keywords", []string{
		"terrible", "horrible", "worst", "useless", "garbage", "pathetic",
		"frustrated", "angry", "furious", "disappointed", "unacceptable",
		"ridiculous", "disgusted", "outraged", "demand", "immediately",
		"never", "always", "!!", "wtf", "damn", "awful", "disgusting",
		"incompetent", "idiots", "stupid", "hate", "fed up",
	})

	// Retrieval defaults
	v.SetDefault("retrieval.top_k", 2)
	v.SetDefault("retrieval.embedding_dimensions", 1536)
	v.SetDefault("retrieval.query_cache_size", 1000)

	// LLM defaults
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.escalation_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.input_cost_per_1m", 0.250)
	v.SetDefault("llm.output_cost_per_1m", 2.000)

	// Session defaults
	v.SetDefault("session.default_ttl", 30)
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.cleanup_interval", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"OPENAI_API_KEY":            "openai.apikey",
		"OPENAI_ENDPOINT":           "openai.endpoint",
		"OPENAI_EMBEDDING_ENDPOINT": "openai.embedding_endpoint",
		"CHROMA_URL":                "chroma.url",
		"KB_DB_PATH":                "store.db_path",
		"MODELS_DIR":                "models.dir",
		"LOG_LEVEL":                 "logging.level",
		"LOG_FORMAT":                "logging.format",
		"LOG_OUTPUT":                "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.OpenAI.APIKey == "" {
		errs = append(errs, ValidationError{
			Field:   "openai.apikey",
			Message: "API key is required. Set via config file or OPENAI_API_KEY environment variable",
		})
	}

	if config.Chroma.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "chroma.url",
			Message: "ChromaDB URL is required",
		})
	}

	if config.Routing.ConfidenceThreshold < 0 || config.Routing.ConfidenceThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "routing.confidence_threshold",
			Message: "confidence_threshold must be between 0 and 1",
		})
	}

	if len(config.Routing.Buckets) == 0 {
		errs = append(errs, ValidationError{
			Field:   "routing.buckets",
			Message: "at least one routing bucket must be configured",
		})
	}

	seen := make(map[string]string)
	for name, bucket := range config.Routing.Buckets {
		for _, intent := range bucket.Intents {
			if prev, ok := seen[intent]; ok && prev != name {
				errs = append(errs, ValidationError{
					Field:   "routing.buckets",
					Message: fmt.Sprintf("intent '%s' is assigned to both '%s' and '%s'", intent, prev, name),
				})
			}
			seen[intent] = name
		}
	}

	if config.Sentiment.NegativeThreshold < 0 || config.Sentiment.NegativeThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "sentiment.negative_threshold",
			Message: "negative_threshold must be between 0 and 1",
		})
	}

	if config.Retrieval.TopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be greater than 0",
		})
	}

	if config.Retrieval.EmbeddingDimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.embedding_dimensions",
			Message: "embedding_dimensions must be greater than 0",
		})
	}

	if config.LLM.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.LLM.Temperature < 0 || config.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if config.Store.DBPath == "" {
		errs = append(errs, ValidationError{
			Field:   "store.db_path",
			Message: "knowledge-base database path is required",
		})
	}

	if config.Store.DBPath != "" {
		if err := validateDirectoryExists(filepath.Dir(config.Store.DBPath)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "store.db_path",
				Message: fmt.Sprintf("database directory does not exist: %s", filepath.Dir(config.Store.DBPath)),
			})
		}
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// BucketForIntent returns the bucket name holding the given intent, if any
func (r RoutingConfig) BucketForIntent(intent string) (string, BucketConfig, bool) {
	for name, bucket := range r.Buckets {
		for _, candidate := range bucket.Intents {
			if candidate == intent {
				return name, bucket, true
			}
		}
	}
	return "", BucketConfig{}, false
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// getEnvironment returns the current environment (development, production, etc.)
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "development"
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			EnableHotReload:  true,
			Environment:      getEnvironment(),
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config after change to %s: %v\n", e.Name, err)
			return
		}

		callback(config)
	})

	return nil
}
