package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mpataki/codeplay/internal/models"
)

// Defaults used when neither the config file nor the environment set a value.
const (
	DefaultLanguage     = models.LangJavaScript
	DefaultExecDelay    = 500 * time.Millisecond
	DefaultSuggestDelay = time.Second
	DefaultExecTimeout  = 5 * time.Second
	DefaultMaxOutput    = 64 << 10
	DefaultLogLevel     = "info"
	DefaultGeminiModel  = "gemini-2.5-flash"
)

// File is the optional config.yaml in the data directory. Empty fields
// fall back to the defaults.
type File struct {
	Language     string `yaml:"language"`
	ExecDelay    string `yaml:"exec_delay"`
	SuggestDelay string `yaml:"suggest_delay"`
	ExecTimeout  string `yaml:"exec_timeout"`
	MaxOutput    int    `yaml:"max_output"`
	LogLevel     string `yaml:"log_level"`
	DownloadDir  string `yaml:"download_dir"`
	Gemini       struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
}

type Config struct {
	DataDir          string
	DBPath           string
	LogPath          string
	ConfigPath       string
	UserPresetDir    string
	ProjectPresetDir string

	Raw File
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("CODEPLAY_DATA_DIR", filepath.Join(homeDir, ".codeplay"))

	c := &Config{
		DataDir:          dataDir,
		DBPath:           filepath.Join(dataDir, "codeplay.db"),
		LogPath:          filepath.Join(dataDir, "codeplay.log"),
		ConfigPath:       filepath.Join(dataDir, "config.yaml"),
		UserPresetDir:    filepath.Join(dataDir, "presets"),
		ProjectPresetDir: ".codeplay/presets",
	}

	if err := c.readFile(); err != nil {
		return nil, err
	}
	c.applyEnv()

	return c, nil
}

func (c *Config) readFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.Raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.ConfigPath, err)
	}
	return nil
}

// applyEnv layers environment variables over the file values.
func (c *Config) applyEnv() {
	c.Raw.Language = getEnv("CODEPLAY_LANGUAGE", c.Raw.Language)
	c.Raw.ExecDelay = getEnv("CODEPLAY_EXEC_DELAY", c.Raw.ExecDelay)
	c.Raw.SuggestDelay = getEnv("CODEPLAY_SUGGEST_DELAY", c.Raw.SuggestDelay)
	c.Raw.ExecTimeout = getEnv("CODEPLAY_EXEC_TIMEOUT", c.Raw.ExecTimeout)
	c.Raw.LogLevel = getEnv("CODEPLAY_LOG_LEVEL", c.Raw.LogLevel)
	c.Raw.DownloadDir = getEnv("CODEPLAY_DOWNLOAD_DIR", c.Raw.DownloadDir)
	c.Raw.Gemini.APIKey = getEnv("CODEPLAY_GEMINI_API_KEY", c.Raw.Gemini.APIKey)
	c.Raw.Gemini.Model = getEnv("CODEPLAY_GEMINI_MODEL", c.Raw.Gemini.Model)
	if v, ok := os.LookupEnv("CODEPLAY_MAX_OUTPUT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Raw.MaxOutput = n
		}
	}
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.UserPresetDir, 0755); err != nil {
		return err
	}
	return nil
}

// PresetDirs lists preset directories in override order.
func (c *Config) PresetDirs() []string {
	return []string{c.UserPresetDir, c.ProjectPresetDir}
}

func (c *Config) Language() models.Language {
	if c.Raw.Language == "" {
		return DefaultLanguage
	}
	return models.ParseLanguage(c.Raw.Language)
}

// ExecDelay is the simulated latency before a run. "0" disables it.
func (c *Config) ExecDelay() time.Duration {
	return durationOr(c.Raw.ExecDelay, DefaultExecDelay)
}

// SuggestDelay is the simulated latency of the rule-based assistant.
func (c *Config) SuggestDelay() time.Duration {
	return durationOr(c.Raw.SuggestDelay, DefaultSuggestDelay)
}

func (c *Config) ExecTimeout() time.Duration {
	d := durationOr(c.Raw.ExecTimeout, DefaultExecTimeout)
	if d <= 0 {
		return DefaultExecTimeout
	}
	return d
}

func (c *Config) MaxOutput() int {
	if c.Raw.MaxOutput <= 0 {
		return DefaultMaxOutput
	}
	return c.Raw.MaxOutput
}

func (c *Config) LogLevel() string {
	if c.Raw.LogLevel == "" {
		return DefaultLogLevel
	}
	return c.Raw.LogLevel
}

// DownloadDir is where downloads land; the working directory by default.
func (c *Config) DownloadDir() string {
	if c.Raw.DownloadDir == "" {
		return "."
	}
	return c.Raw.DownloadDir
}

func (c *Config) GeminiAPIKey() string { return c.Raw.Gemini.APIKey }

func (c *Config) GeminiModel() string {
	if c.Raw.Gemini.Model == "" {
		return DefaultGeminiModel
	}
	return c.Raw.Gemini.Model
}

// durationOr parses s as a duration. An explicit zero maps to a negative
// value, which the runner and the assistant read as "no delay".
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		if n, convErr := strconv.Atoi(s); convErr == nil {
			d = time.Duration(n) * time.Millisecond
		} else {
			return def
		}
	}
	if d == 0 {
		return -1
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
