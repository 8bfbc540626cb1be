package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server settings. Values come from the optional YAML
// config file, then environment variables, then flags, last one wins.
type Config struct {
	Port          int    `yaml:"port"`
	DBPath        string `yaml:"db"`
	SessionHours  int    `yaml:"session_hours"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	DefaultDept   string `yaml:"default_dept"`
	CompanyName   string `yaml:"company_name"`
	SeedDemoData  bool   `yaml:"seed_demo_data"`
}

var cfg = defaultConfig()

func defaultConfig() Config {
	return Config{
		Port:         9000,
		DBPath:       "torp.db",
		SessionHours: 24,
		MaxUploadMB:  16,
		DefaultDept:  "DTD",
		CompanyName:  "Technical Office",
		SeedDemoData: true,
	}
}

// loadConfig reads the YAML file at path (if it exists) over the
// defaults, then applies TORP_* environment overrides.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if v := os.Getenv("TORP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("TORP_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TORP_COMPANY_NAME"); v != "" {
		cfg.CompanyName = v
	}

	if cfg.SessionHours <= 0 {
		cfg.SessionHours = 24
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 16
	}
	if cfg.DefaultDept == "" {
		cfg.DefaultDept = "DTD"
	}
	return cfg, nil
}
