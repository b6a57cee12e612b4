package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Corpus sources understood by the retrieval subsystem.
const (
	CorpusSourceFile  = "file"
	CorpusSourceDB    = "db"
	CorpusSourceIndex = "index"
)

// DefaultCorpusFile is the corpus file name looked up in the data directory.
const DefaultCorpusFile = "combined_data_with_embeddings.json"

// Profile is configuration to start main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol).
	// Gemini is reached through its OpenAI-compatible endpoint.
	ALLMProvider string
	ALLMAPIKey   string
	ALLMBaseURL  string
	ALLMModel    string
	ALLMTimeout  int // seconds

	// Embedding configuration. The defaults match the corpus produced by the
	// embed command (all-MiniLM, 384 dimensions).
	AIEmbeddingProvider   string
	AIEmbeddingModel      string
	AIEmbeddingAPIKey     string
	AIEmbeddingBaseURL    string
	AIEmbeddingDimensions int

	// Retrieval configuration
	CorpusPath   string
	CorpusSource string
	TopN         int

	// HTTP configuration
	CORSOrigins      []string
	AnalyzeRPS       float64
	MaxConcurrentLLM int

	Mode        string
	Addr        string
	Data        string
	Driver      string
	DSN         string
	Version     string
	InstanceURL string
	Port        int
	AIEnabled   bool
}

// Provider defaults for the LLM, used when the base URL or model is not set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"gemini": {
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
		Model:   "gemini-2.0-flash",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "google/gemini-2.0-flash-001",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llava",
	},
}

// defaultCORSOrigins are the Expo and LAN dev origins the mobile client runs on.
var defaultCORSOrigins = []string{
	"http://localhost:8081",
	"http://localhost:19006",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the LLM is configured. Ollama needs no key.
func (p *Profile) IsAIEnabled() bool {
	return p.ALLMAPIKey != "" || p.ALLMProvider == "ollama"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads AI and HTTP configuration from environment variables.
func (p *Profile) FromEnv() {
	p.ALLMProvider = getEnvOrDefault("EUNOIA_AI_LLM_PROVIDER", "gemini")
	p.ALLMAPIKey = getEnvOrDefault("EUNOIA_AI_LLM_API_KEY", "")
	p.ALLMBaseURL = getEnvOrDefault("EUNOIA_AI_LLM_BASE_URL", "")
	p.ALLMModel = getEnvOrDefault("EUNOIA_AI_LLM_MODEL", "")
	p.ALLMTimeout = getEnvOrDefaultInt("EUNOIA_AI_LLM_TIMEOUT_SECONDS", 120)

	if _, ok := llmProviderDefaults[p.ALLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: gemini", "provider", p.ALLMProvider)
		p.ALLMProvider = "gemini"
	}
	defaults := llmProviderDefaults[p.ALLMProvider]
	if p.ALLMBaseURL == "" {
		p.ALLMBaseURL = defaults.BaseURL
	}
	if p.ALLMModel == "" {
		p.ALLMModel = defaults.Model
	}
	p.AIEnabled = p.IsAIEnabled()

	p.AIEmbeddingProvider = getEnvOrDefault("EUNOIA_AI_EMBEDDING_PROVIDER", "ollama")
	p.AIEmbeddingModel = getEnvOrDefault("EUNOIA_AI_EMBEDDING_MODEL", "all-minilm")
	p.AIEmbeddingAPIKey = getEnvOrDefault("EUNOIA_AI_EMBEDDING_API_KEY", "")
	p.AIEmbeddingBaseURL = getEnvOrDefault("EUNOIA_AI_EMBEDDING_BASE_URL", "http://localhost:11434/v1")
	p.AIEmbeddingDimensions = getEnvOrDefaultInt("EUNOIA_AI_EMBEDDING_DIMENSIONS", 384)

	p.AnalyzeRPS = getEnvOrDefaultFloat("EUNOIA_ANALYZE_RPS", 2)
	p.MaxConcurrentLLM = getEnvOrDefaultInt("EUNOIA_MAX_CONCURRENT_LLM", 4)

	if origins := os.Getenv("EUNOIA_CORS_ORIGINS"); origins != "" {
		p.CORSOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				p.CORSOrigins = append(p.CORSOrigins, origin)
			}
		}
	}
	if len(p.CORSOrigins) == 0 {
		p.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

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

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "eunoia")
		} else {
			p.Data = "/var/opt/eunoia"
		}
		if err := os.MkdirAll(p.Data, 0770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
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

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("eunoia_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
	default:
		return errors.Errorf("unsupported driver: %s", p.Driver)
	}

	switch p.CorpusSource {
	case "":
		p.CorpusSource = CorpusSourceFile
	case CorpusSourceFile, CorpusSourceDB, CorpusSourceIndex:
	default:
		return errors.Errorf("unsupported corpus source: %s", p.CorpusSource)
	}
	if p.CorpusPath == "" {
		p.CorpusPath = filepath.Join(dataDir, DefaultCorpusFile)
	}
	if p.TopN <= 0 {
		p.TopN = 3
	}
	if p.MaxConcurrentLLM <= 0 {
		p.MaxConcurrentLLM = 4
	}

	return nil
}
