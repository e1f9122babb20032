// Package config loads the service's runtime configuration from flags,
// environment variables, and an optional YAML overlay file, in that
// precedence order (flags win, then env, then file, then built-in
// defaults).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the service-level configuration consumed by cmd/fabrigod.
type Config struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// Default returns the spec-mandated defaults.
func Default() Config {
	return Config{Port: 3000, Host: "0.0.0.0", MaxConcurrency: 10}
}

// Load builds a Config starting from cfg (normally Default), overlaying
// a YAML file at configPath if non-empty, then environment variables
// (PORT, HOST, MAX_CONCURRENCY). Values in cfg are overwritten by the
// file and env; CLI flag overrides are applied by the caller after Load
// returns.
func Load(configPath string, cfg Config) (Config, error) {
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid MAX_CONCURRENCY %q: %w", v, err)
		}
		cfg.MaxConcurrency = n
	}

	return cfg, nil
}

// Addr returns the host:port string to listen on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
