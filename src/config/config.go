package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

const (
	// EnvPathEnvVar names an alternative .env file.
	EnvPathEnvVar = "QUICKTOOLS_ENV"
	// StoreDirEnvVar overrides the store directory.
	StoreDirEnvVar = "QUICKTOOLS_STORE_DIR"

	DefaultStoreDir   = "~/.quicktools"
	DefaultGalleryDir = "~/Pictures/QtilityKit"
	DefaultHotkey     = "Ctrl+Alt+Space"
)

type LoadOptions struct {
	StoreDirOverride string
	EnvPathOverride  string
}

type Config struct {
	StoreDir          string
	EnableFileLogging bool
	Hotkey            string
	TapThresholdDP    int
	Density           float64
	BubbleSizeDP      int
	MenuWidthDP       int
	ScreenWidth       int
	ScreenHeight      int
	GalleryDir        string
	IconDir           string
	EnvPath           string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) opts.EnvPathOverride
	// 2) .env in the executable directory
	// 3) the file named by QUICKTOOLS_ENV
	envPath := strings.TrimSpace(opts.EnvPathOverride)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envPath, err)
		}
	}

	storeDir := getEnvWithDefault(StoreDirEnvVar, DefaultStoreDir)
	if override := strings.TrimSpace(opts.StoreDirOverride); override != "" {
		storeDir = override
	}
	storeDir, err := expand(storeDir)
	if err != nil {
		return nil, err
	}
	galleryDir, err := expand(getEnvWithDefault("GALLERY_DIR", DefaultGalleryDir))
	if err != nil {
		return nil, err
	}
	iconDir, err := expand(os.Getenv("ICON_DIR"))
	if err != nil {
		return nil, err
	}

	hotkey := DefaultHotkey
	if v, ok := os.LookupEnv("HOTKEY"); ok {
		hotkey = strings.TrimSpace(v)
	}

	cfg := &Config{
		StoreDir:          storeDir,
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		Hotkey:            hotkey,
		TapThresholdDP:    getPositiveInt("TAP_THRESHOLD_DP", 10),
		Density:           getPositiveFloat("DISPLAY_DENSITY", 1.0),
		BubbleSizeDP:      getPositiveInt("BUBBLE_SIZE_DP", 56),
		MenuWidthDP:       getPositiveInt("MENU_WIDTH_DP", 220),
		ScreenWidth:       getPositiveInt("SCREEN_WIDTH", 0),
		ScreenHeight:      getPositiveInt("SCREEN_HEIGHT", 0),
		GalleryDir:        galleryDir,
		IconDir:           iconDir,
		EnvPath:           envPath,
	}
	return cfg, nil
}

// Px converts device-independent pixels to pixels at the configured density.
func (c *Config) Px(dp int) int {
	density := c.Density
	if density <= 0 {
		density = 1
	}
	return int(math.Round(float64(dp) * density))
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("config: expand %q: %w", path, err)
	}
	return filepath.Clean(p), nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getPositiveFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}
