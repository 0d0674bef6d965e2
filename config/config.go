package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the runtime settings of the composition engine
type Config struct {
	FFmpegPath  string
	FFprobePath string
	WorkDirBase string
	OutputDir   string
	CatalogFile string

	JobTimeout    time.Duration
	EncodeTimeout time.Duration
	ProbeTimeout  time.Duration

	BatchThreshold   int
	BatchSize        int
	BatchConcurrency int

	DefaultPreset     string
	DefaultCRF        int
	DurationTolerance float64
	StderrTailLines   int

	VoiceOverLeadIn   float64
	EndPadding        float64
	MusicVolume       float64
	AudioFadeSeconds  float64
	NormalizeLoudness bool

	// AllowPlaceholders substitutes a solid frame for unreadable images.
	// Never enable it in production.
	AllowPlaceholders bool

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present), an optional composer.yaml and COMPOSER_* environment variables
func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("composer")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("COMPOSER")
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		FFmpegPath:        v.GetString("ffmpeg.path"),
		FFprobePath:       v.GetString("ffmpeg.probe_path"),
		WorkDirBase:       v.GetString("work_dir"),
		OutputDir:         v.GetString("output_dir"),
		CatalogFile:       v.GetString("catalog_file"),
		JobTimeout:        v.GetDuration("timeouts.job"),
		EncodeTimeout:     v.GetDuration("timeouts.encode"),
		ProbeTimeout:      v.GetDuration("timeouts.probe"),
		BatchThreshold:    v.GetInt("batch.threshold"),
		BatchSize:         v.GetInt("batch.size"),
		BatchConcurrency:  v.GetInt("batch.concurrency"),
		DefaultPreset:     v.GetString("encode.preset"),
		DefaultCRF:        v.GetInt("encode.crf"),
		DurationTolerance: v.GetFloat64("encode.duration_tolerance"),
		StderrTailLines:   v.GetInt("encode.stderr_tail_lines"),
		VoiceOverLeadIn:   v.GetFloat64("audio.voice_lead_in"),
		EndPadding:        v.GetFloat64("audio.end_padding"),
		MusicVolume:       v.GetFloat64("audio.music_volume"),
		AudioFadeSeconds:  v.GetFloat64("audio.fade_seconds"),
		NormalizeLoudness: v.GetBool("audio.normalize"),
		AllowPlaceholders: v.GetBool("assets.allow_placeholders"),
		LogLevel:          v.GetString("log.level"),
		LogFormat:         v.GetString("log.format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings without reading the environment
func Default() *Config {
	return &Config{
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		WorkDirBase:       os.TempDir(),
		OutputDir:         OutputDir,
		JobTimeout:        DefaultJobTimeout,
		EncodeTimeout:     DefaultEncodeTimeout,
		ProbeTimeout:      DefaultProbeTimeout,
		BatchThreshold:    DefaultBatchThreshold,
		BatchSize:         DefaultBatchSize,
		BatchConcurrency:  DefaultBatchConcurrency,
		DefaultPreset:     DefaultPreset,
		DefaultCRF:        DefaultCRF,
		DurationTolerance: DurationTolerance,
		StderrTailLines:   StderrTailLines,
		VoiceOverLeadIn:   VoiceOverLeadIn,
		EndPadding:        VideoEndPadding,
		MusicVolume:       MusicVolume,
		AudioFadeSeconds:  AudioFadeSeconds,
		NormalizeLoudness: true,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Validate rejects settings the scheduler or encoder cannot work with
func (c *Config) Validate() error {
	if c.BatchThreshold < 1 {
		return fmt.Errorf("batch threshold must be at least 1, got %d", c.BatchThreshold)
	}
	if c.BatchSize < 2 {
		return fmt.Errorf("batch size must be at least 2, got %d", c.BatchSize)
	}
	if c.BatchConcurrency < 1 || c.BatchConcurrency > MaxBatchConcurrency {
		return fmt.Errorf("batch concurrency must be between 1 and %d, got %d", MaxBatchConcurrency, c.BatchConcurrency)
	}
	if c.DefaultCRF < 0 || c.DefaultCRF > 51 {
		return fmt.Errorf("default crf must be between 0 and 51, got %d", c.DefaultCRF)
	}
	if c.JobTimeout <= 0 || c.EncodeTimeout <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.DurationTolerance <= 0 {
		return fmt.Errorf("duration tolerance must be positive")
	}
	if c.MusicVolume < 0 || c.MusicVolume > 1 {
		return fmt.Errorf("music volume must be between 0 and 1, got %.2f", c.MusicVolume)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("ffmpeg.path", d.FFmpegPath)
	v.SetDefault("ffmpeg.probe_path", d.FFprobePath)
	v.SetDefault("work_dir", d.WorkDirBase)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("catalog_file", "")
	v.SetDefault("timeouts.job", d.JobTimeout)
	v.SetDefault("timeouts.encode", d.EncodeTimeout)
	v.SetDefault("timeouts.probe", d.ProbeTimeout)
	v.SetDefault("batch.threshold", d.BatchThreshold)
	v.SetDefault("batch.size", d.BatchSize)
	v.SetDefault("batch.concurrency", d.BatchConcurrency)
	v.SetDefault("encode.preset", d.DefaultPreset)
	v.SetDefault("encode.crf", d.DefaultCRF)
	v.SetDefault("encode.duration_tolerance", d.DurationTolerance)
	v.SetDefault("encode.stderr_tail_lines", d.StderrTailLines)
	v.SetDefault("audio.voice_lead_in", d.VoiceOverLeadIn)
	v.SetDefault("audio.end_padding", d.EndPadding)
	v.SetDefault("audio.music_volume", d.MusicVolume)
	v.SetDefault("audio.fade_seconds", d.AudioFadeSeconds)
	v.SetDefault("audio.normalize", d.NormalizeLoudness)
	v.SetDefault("assets.allow_placeholders", false)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("ffmpeg.path", "COMPOSER_FFMPEG_PATH")
	_ = v.BindEnv("ffmpeg.probe_path", "COMPOSER_FFPROBE_PATH")
	_ = v.BindEnv("work_dir", "COMPOSER_WORK_DIR")
	_ = v.BindEnv("output_dir", "COMPOSER_OUTPUT_DIR")
	_ = v.BindEnv("catalog_file", "COMPOSER_CATALOG_FILE")
	_ = v.BindEnv("timeouts.job", "COMPOSER_JOB_TIMEOUT")
	_ = v.BindEnv("timeouts.encode", "COMPOSER_ENCODE_TIMEOUT")
	_ = v.BindEnv("timeouts.probe", "COMPOSER_PROBE_TIMEOUT")
	_ = v.BindEnv("batch.threshold", "COMPOSER_BATCH_THRESHOLD")
	_ = v.BindEnv("batch.size", "COMPOSER_BATCH_SIZE")
	_ = v.BindEnv("batch.concurrency", "COMPOSER_BATCH_CONCURRENCY")
	_ = v.BindEnv("encode.preset", "COMPOSER_PRESET")
	_ = v.BindEnv("encode.crf", "COMPOSER_CRF")
	_ = v.BindEnv("encode.duration_tolerance", "COMPOSER_DURATION_TOLERANCE")
	_ = v.BindEnv("encode.stderr_tail_lines", "COMPOSER_STDERR_TAIL_LINES")
	_ = v.BindEnv("audio.voice_lead_in", "COMPOSER_VOICE_LEAD_IN")
	_ = v.BindEnv("audio.end_padding", "COMPOSER_END_PADDING")
	_ = v.BindEnv("audio.music_volume", "COMPOSER_MUSIC_VOLUME")
	_ = v.BindEnv("audio.fade_seconds", "COMPOSER_AUDIO_FADE")
	_ = v.BindEnv("audio.normalize", "COMPOSER_NORMALIZE_LOUDNESS")
	_ = v.BindEnv("assets.allow_placeholders", "COMPOSER_ALLOW_PLACEHOLDERS")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}
