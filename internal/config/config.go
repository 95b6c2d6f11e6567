// Package config loads optional CLI defaults from a YAML file. Command-line
// flags always win over file values.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// File mirrors the scraper.yaml schema.
type File struct {
	Host        string   `yaml:"host"`
	QPS         float64  `yaml:"qps"`
	Concurrency int      `yaml:"concurrency"`
	Filters     []string `yaml:"filters"`
	RedisAddr   string   `yaml:"redis_addr"`
	Cache       string   `yaml:"cache"` // "", "disk", "redis"
	SinkPath    string   `yaml:"sink_path"`
	UserAgent   string   `yaml:"user_agent"`
	StopOnFail  bool     `yaml:"stop_on_fail"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

// Load reads and parses path. A missing file is not an error; it returns an
// empty config so flags alone can drive a run.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
