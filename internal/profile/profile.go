package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory (audio artifacts, event log)
	Data string
	// PublicURL is the externally reachable base URL used when building
	// audio playback URLs for the telephony provider.
	PublicURL string
	// Version is the current version of server
	Version string

	// LLM configuration
	LLMAPIKey  string        // VOXLANE_LLM_API_KEY
	LLMBaseURL string        // VOXLANE_LLM_BASE_URL (default: https://api.groq.com/openai/v1)
	LLMModel   string        // VOXLANE_LLM_MODEL (default: llama-3.3-70b-versatile)
	LLMTimeout time.Duration // VOXLANE_LLM_TIMEOUT (default: 30s)

	// TTS configuration
	TTSRegion  string        // VOXLANE_TTS_REGION (default: us-east-1)
	TTSVoice   string        // VOXLANE_TTS_VOICE (default: Joanna)
	TTSEngine  string        // VOXLANE_TTS_ENGINE (default: neural)
	TTSTimeout time.Duration // VOXLANE_TTS_TIMEOUT (default: 15s)
	FFmpegPath string        // VOXLANE_FFMPEG_PATH (default: ffmpeg)

	// Conversation configuration
	HistoryWindow    int           // VOXLANE_HISTORY_WINDOW (default: 10)
	PinSystemMessage bool          // VOXLANE_PIN_SYSTEM_MESSAGE (default: true)
	ConversationTTL  time.Duration // VOXLANE_CONVERSATION_TTL (default: 30m)

	// Twilio credentials, used as defaults until overridden via the API
	TwilioAccountSID  string // TWILIO_ACCOUNT_SID
	TwilioAuthToken   string // TWILIO_AUTH_TOKEN
	TwilioPhoneNumber string // TWILIO_PHONE_NUMBER
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// AudioDir returns the directory synthesized audio artifacts are written to.
func (p *Profile) AudioDir() string {
	return filepath.Join(p.Data, "audio_files", "output")
}

// EventLogPath returns the path of the durable pipeline event log.
func (p *Profile) EventLogPath() string {
	return filepath.Join(p.Data, "logs", "app_logs.ndjson")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMAPIKey = os.Getenv("VOXLANE_LLM_API_KEY")
	p.LLMBaseURL = getEnvOrDefault("VOXLANE_LLM_BASE_URL", "https://api.groq.com/openai/v1")
	p.LLMModel = getEnvOrDefault("VOXLANE_LLM_MODEL", "llama-3.3-70b-versatile")
	p.LLMTimeout = getDurationEnv("VOXLANE_LLM_TIMEOUT", 30*time.Second)

	p.TTSRegion = getEnvOrDefault("VOXLANE_TTS_REGION", getEnvOrDefault("AWS_REGION", "us-east-1"))
	p.TTSVoice = getEnvOrDefault("VOXLANE_TTS_VOICE", "Joanna")
	p.TTSEngine = getEnvOrDefault("VOXLANE_TTS_ENGINE", "neural")
	p.TTSTimeout = getDurationEnv("VOXLANE_TTS_TIMEOUT", 15*time.Second)
	p.FFmpegPath = getEnvOrDefault("VOXLANE_FFMPEG_PATH", "ffmpeg")

	p.HistoryWindow = getIntEnv("VOXLANE_HISTORY_WINDOW", 10)
	p.PinSystemMessage = getEnvOrDefault("VOXLANE_PIN_SYSTEM_MESSAGE", "true") != "false"
	p.ConversationTTL = getDurationEnv("VOXLANE_CONVERSATION_TTL", 30*time.Minute)

	p.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	p.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	p.TwilioPhoneNumber = os.Getenv("TWILIO_PHONE_NUMBER")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	for _, dir := range []string{p.AudioDir(), filepath.Dir(p.EventLogPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	if p.HistoryWindow <= 0 {
		p.HistoryWindow = 10
	}
	if p.PublicURL != "" {
		p.PublicURL = strings.TrimRight(p.PublicURL, "/")
	}

	return nil
}
