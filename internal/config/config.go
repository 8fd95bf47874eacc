package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDir holds named configs, "--config work" reads configs/work.yaml.
const DefaultDir = "configs"

var ErrConfigNotFound = errors.New("config not found")

type Config struct {
	// Name is the file stem, recorded with every saved session.
	Name string `yaml:"-"`

	Bot      Bot      `yaml:"bot"`
	Prompts  Prompts  `yaml:"prompts"`
	Paths    Paths    `yaml:"paths"`
	Services Services `yaml:"services"`
}

type Bot struct {
	Language             string   `yaml:"language"`
	AssistantNames       []string `yaml:"assistant_names"`
	IdleTimeoutSecs      int      `yaml:"idle_timeout_secs"`
	KeepaliveTimeoutSecs int      `yaml:"keepalive_timeout_secs"`
	UserIdleTimeoutSecs  int      `yaml:"user_idle_timeout_secs"`
	SaveIntervalSecs     int      `yaml:"save_interval_secs"`
	AudioRecording       bool     `yaml:"audio_recording"`
	SampleRate           int      `yaml:"sample_rate"`
}

func (b Bot) IdleTimeout() time.Duration      { return time.Duration(b.IdleTimeoutSecs) * time.Second }
func (b Bot) KeepaliveTimeout() time.Duration { return time.Duration(b.KeepaliveTimeoutSecs) * time.Second }
func (b Bot) UserIdleTimeout() time.Duration  { return time.Duration(b.UserIdleTimeoutSecs) * time.Second }
func (b Bot) SaveInterval() time.Duration     { return time.Duration(b.SaveIntervalSecs) * time.Second }

// Prompts are file paths. Empty ones fall back to the built-in prompts.
type Prompts struct {
	Persona string `yaml:"persona"`
	Intro   string `yaml:"intro"`
}

type Paths struct {
	Recordings  string `yaml:"recordings"`
	Transcripts string `yaml:"transcripts"`
	Contexts    string `yaml:"contexts"`
}

type Services struct {
	STT        STT        `yaml:"stt"`
	LLM        LLM        `yaml:"llm"`
	Classifier Classifier `yaml:"classifier"`
	TTS        TTS        `yaml:"tts"`
}

type STT struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type LLM struct {
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
	BaseURL  string   `yaml:"base_url"`
	Tools    []string `yaml:"tools"`
}

type Classifier struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

type TTS struct {
	Provider string `yaml:"provider"`
	Voice    string `yaml:"voice"`
}

func Default() *Config {
	return &Config{
		Name: "default",
		Bot: Bot{
			Language:             "EN",
			AssistantNames:       []string{"Experto", "Experte", "Expertin", "Expert"},
			IdleTimeoutSecs:      1800,
			KeepaliveTimeoutSecs: 30,
			UserIdleTimeoutSecs:  5,
			SaveIntervalSecs:     60,
			SampleRate:           16000,
		},
		Paths: Paths{
			Recordings:  "./recordings",
			Transcripts: "./transcripts",
			Contexts:    "~/.xperto/contexts",
		},
		Services: Services{
			STT:        STT{Provider: "deepgram", Model: "nova-2-general"},
			LLM:        LLM{Provider: "openai", Model: "gpt-4.1"},
			Classifier: Classifier{Provider: "groq", Model: "llama-3.1-8b-instant"},
			TTS:        TTS{Provider: "deepgram", Voice: "aura-helios-en"},
		},
	}
}

// Resolve turns a --config value into a file path. Absolute paths, paths
// with a separator and names ending in .yaml or .yml are files, anything
// else names a config in dir.
func Resolve(nameOrPath, dir string) string {
	if filepath.IsAbs(nameOrPath) ||
		strings.ContainsRune(nameOrPath, filepath.Separator) ||
		strings.ContainsRune(nameOrPath, '/') ||
		strings.HasSuffix(nameOrPath, ".yaml") ||
		strings.HasSuffix(nameOrPath, ".yml") {
		return nameOrPath
	}
	return filepath.Join(dir, nameOrPath+".yaml")
}

// Load reads the config at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.normalize()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
	}
	cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return cfg, cfg.normalize()
}

func (c *Config) normalize() error {
	c.Bot.Language = strings.ToUpper(c.Bot.Language)
	if c.Bot.Language != "EN" && c.Bot.Language != "DE" {
		return fmt.Errorf("unsupported language %q", c.Bot.Language)
	}
	if len(c.Bot.AssistantNames) == 0 {
		return fmt.Errorf("at least one assistant name is required")
	}

	var err error
	if c.Paths.Contexts, err = ExpandHome(c.Paths.Contexts); err != nil {
		return err
	}
	if c.Paths.Recordings, err = ExpandHome(c.Paths.Recordings); err != nil {
		return err
	}
	if c.Paths.Transcripts, err = ExpandHome(c.Paths.Transcripts); err != nil {
		return err
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Override applies command line overrides. Empty values are ignored.
func (c *Config) Override(language, assistantName, voice string) error {
	if language != "" {
		c.Bot.Language = language
	}
	if assistantName != "" {
		c.Bot.AssistantNames = append([]string{assistantName}, c.Bot.AssistantNames...)
	}
	if voice != "" {
		c.Services.TTS.Voice = voice
	}
	return c.normalize()
}
