package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors config/easymund.yaml, extended with
// the fields a real deployment needs (listen addresses, sounds dir, packet
// size, TLS cert paths).
type Config struct {
	HTTP HTTPConfig `yaml:"http"`

	WSAddr     string `yaml:"ws_addr"`
	AdminAddr  string `yaml:"admin_addr"`
	SoundsDir  string `yaml:"sounds_dir"`
	PacketSize int    `yaml:"packet_size"`
	DBPath     string `yaml:"db_path"`
	CertDir    string `yaml:"cert_dir"`
}

// HTTPConfig is the `http:` block of easymund.yaml.
type HTTPConfig struct {
	IsSecure    bool   `yaml:"is_secure"`
	ContentPath string `yaml:"content_path"`
}

// defaultPacketSize is the fixed audio packet size (2048 samples @ 44.1kHz
// mono, ≈46.4ms/tick).
const defaultPacketSize = 2048

// LoadConfig reads path and applies defaults for any field the file omits.
// A missing file is not fatal-at-start here; the caller decides whether to
// fall back to command-line flags alone.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			IsSecure:    false,
			ContentPath: "static",
		},
		WSAddr:     "[::]:5665",
		AdminAddr:  ":9090",
		SoundsDir:  "sounds",
		PacketSize: defaultPacketSize,
		DBPath:     "easymund.db",
		CertDir:    "cert",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = defaultPacketSize
	}
	return cfg, nil
}
