package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/particles"
	"github.com/crystal-mush/hubportal/pkg/teleport"
	"github.com/crystal-mush/hubportal/pkg/world"
	"gopkg.in/yaml.v3"
)

// MaxTickRate bounds tick_rate; faster rates fall back to the default.
const MaxTickRate = 1000

// EnvPrefix is prepended to every environment override, e.g. HUB_WEB_PORT.
const EnvPrefix = "HUB_"

// GameConf holds hub configuration. Values come from DefaultGameConf, then
// the YAML file, then HUB_* environment variables.
type GameConf struct {
	// --- Identity ---
	HubName string `yaml:"hub_name" env:"NAME"`

	// --- Web ---
	WebHost string `yaml:"web_host" env:"WEB_HOST"`
	WebPort int    `yaml:"web_port" env:"WEB_PORT"`

	WebCORSOrigins []string `yaml:"web_cors_origins" env:"WEB_CORS_ORIGINS" envSeparator:","` // Allowed origins, empty = any
	WebRateLimit   int      `yaml:"web_rate_limit" env:"WEB_RATE_LIMIT"`                      // HTTP requests per minute per IP

	// --- TLS ---
	WebTLS    bool   `yaml:"web_tls" env:"WEB_TLS"`
	TLSDomain string `yaml:"tls_domain" env:"TLS_DOMAIN"` // Let's Encrypt domain, empty = cert files or self-signed
	TLSCert   string `yaml:"tls_cert" env:"TLS_CERT"`
	TLSKey    string `yaml:"tls_key" env:"TLS_KEY"`
	CertDir   string `yaml:"cert_dir" env:"CERT_DIR"` // Self-signed certs and the autocert cache

	// --- Tick cadence ---
	TickRate         int `yaml:"tick_rate" env:"TICK_RATE"`                 // Ticks per second, 1-1000 (default 20)
	CooldownTicks    int `yaml:"cooldown_ticks" env:"COOLDOWN_TICKS"`       // Ticks between a player's teleports
	ParticleInterval int `yaml:"particle_interval" env:"PARTICLE_INTERVAL"` // Emit every N ticks

	// --- Particles ---
	ParticleCount  int       `yaml:"particle_count" env:"PARTICLE_COUNT"`
	ParticleOffset []float64 `yaml:"particle_offset" env:"PARTICLE_OFFSET" envSeparator:","` // x, y, z spread
	ParticleSpeed  float64   `yaml:"particle_speed" env:"PARTICLE_SPEED"`

	// --- Persistence ---
	BoltPath         string `yaml:"bolt_path" env:"BOLT"`
	AutosaveInterval int    `yaml:"autosave_interval" env:"AUTOSAVE_INTERVAL"` // Seconds between dirty write-backs
	JournalPath      string `yaml:"journal_path" env:"JOURNAL"`                // SQLite teleport history, empty = disabled
	JournalRetention int    `yaml:"journal_retention" env:"JOURNAL_RETENTION"` // Seconds, 0 = keep forever

	// --- Archives ---
	ArchiveDir      string `yaml:"archive_dir" env:"ARCHIVE_DIR"`
	ArchiveInterval int    `yaml:"archive_interval" env:"ARCHIVE_INTERVAL"` // Minutes between auto-archives, 0 = off
	ArchiveRetain   int    `yaml:"archive_retain" env:"ARCHIVE_RETAIN"`     // Archives kept, 0 = all
	ArchiveHook     string `yaml:"archive_hook" env:"ARCHIVE_HOOK"`         // Shell command run after each archive; %f is the path

	// --- Permissions ---
	Operators []string `yaml:"operators" env:"OPERATORS" envSeparator:","`

	// --- World ---
	DefaultWorld string `yaml:"default_world" env:"DEFAULT_WORLD"`

	// --- Toggles ---
	MetricsEnabled bool `yaml:"metrics_enabled" env:"METRICS"`
	WatchConfig    bool `yaml:"watch_config" env:"WATCH_CONFIG"`
	Debug          bool `yaml:"debug" env:"DEBUG"`
}

// DefaultGameConf returns a GameConf with the stock cadence and effects.
func DefaultGameConf() *GameConf {
	return &GameConf{
		HubName:          "hub",
		WebPort:          8765,
		WebRateLimit:     120,
		CertDir:          "certs",
		TickRate:         20,
		CooldownTicks:    teleport.DefaultCooldown,
		ParticleInterval: particles.DefaultInterval,
		ParticleCount:    particles.DefaultCount,
		ParticleOffset:   []float64{particles.DefaultOffset.X, particles.DefaultOffset.Y, particles.DefaultOffset.Z},
		ParticleSpeed:    particles.DefaultSpeed,
		BoltPath:         "hubportal.db",
		AutosaveInterval: 30,
		JournalRetention: 7 * 24 * 3600,
		ArchiveDir:       "backups",
		ArchiveRetain:    10,
		DefaultWorld:     world.Overworld,
		MetricsEnabled:   true,
	}
}

// LoadGameConf loads a YAML config file on top of the defaults and applies
// environment overrides. An empty path skips the file.
func LoadGameConf(path string) (*GameConf, error) {
	gc := DefaultGameConf()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, gc); err != nil {
			return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
		}
	}
	if err := gc.ApplyEnv(); err != nil {
		return nil, err
	}
	gc.normalize()
	return gc, nil
}

// ApplyEnv overrides fields from HUB_* environment variables.
func (gc *GameConf) ApplyEnv() error {
	if err := env.ParseWithOptions(gc, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// normalize replaces out-of-range values with defaults.
func (gc *GameConf) normalize() {
	def := DefaultGameConf()
	if gc.WebRateLimit <= 0 {
		gc.WebRateLimit = def.WebRateLimit
	}
	if gc.TickRate <= 0 || gc.TickRate > MaxTickRate {
		gc.TickRate = def.TickRate
	}
	if gc.CooldownTicks < 0 {
		gc.CooldownTicks = def.CooldownTicks
	}
	if gc.ParticleInterval <= 0 {
		gc.ParticleInterval = def.ParticleInterval
	}
	if gc.ParticleCount <= 0 {
		gc.ParticleCount = def.ParticleCount
	}
	if len(gc.ParticleOffset) != 3 {
		gc.ParticleOffset = def.ParticleOffset
	}
	if gc.ParticleSpeed < 0 {
		gc.ParticleSpeed = def.ParticleSpeed
	}
	if gc.AutosaveInterval <= 0 {
		gc.AutosaveInterval = def.AutosaveInterval
	}
	if gc.JournalRetention < 0 {
		gc.JournalRetention = 0
	}
	if gc.CertDir == "" {
		gc.CertDir = def.CertDir
	}
	if gc.ArchiveDir == "" {
		gc.ArchiveDir = def.ArchiveDir
	}
	if gc.ArchiveInterval < 0 {
		gc.ArchiveInterval = 0
	}
	if gc.DefaultWorld == "" {
		gc.DefaultWorld = def.DefaultWorld
	}
}

// TickInterval is the wall-clock duration of one tick.
func (gc *GameConf) TickInterval() time.Duration {
	return time.Second / time.Duration(gc.TickRate)
}

// Autosave is the write-back interval.
func (gc *GameConf) Autosave() time.Duration {
	return time.Duration(gc.AutosaveInterval) * time.Second
}

// Retention is how long journal rows are kept; zero keeps them forever.
func (gc *GameConf) Retention() time.Duration {
	return time.Duration(gc.JournalRetention) * time.Second
}

// ParticleSettings converts the particle keys for the emitter.
func (gc *GameConf) ParticleSettings() particles.Settings {
	return particles.Settings{
		Interval: int64(gc.ParticleInterval),
		Count:    gc.ParticleCount,
		Offset:   gamedb.Vec3{X: gc.ParticleOffset[0], Y: gc.ParticleOffset[1], Z: gc.ParticleOffset[2]},
		Speed:    gc.ParticleSpeed,
	}
}

// IsOperator reports whether a player name is privileged. Names compare
// case-insensitively.
func (gc *GameConf) IsOperator(name string) bool {
	for _, op := range gc.Operators {
		if strings.EqualFold(strings.TrimSpace(op), name) {
			return true
		}
	}
	return false
}
