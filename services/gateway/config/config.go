// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads gateway configuration from an optional YAML file
// with environment variable overrides. Environment always wins, so a
// containerized deployment can run with no config file at all.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type GatewayConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Platform PlatformConfig `yaml:"platform"`
	Session  SessionConfig  `yaml:"session"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// WebSessionTTL is how long a browser session stays valid, e.g. "24h".
	WebSessionTTL string `yaml:"web_session_ttl"`
}

type PlatformConfig struct {
	// BridgeURL is the websocket endpoint of the MTProto bridge process.
	BridgeURL string `yaml:"bridge_url"`
	APIID     int    `yaml:"api_id"`
	APIHash   string `yaml:"api_hash"`
	// SessionDBPath is where encrypted session blobs persist across restarts.
	SessionDBPath string `yaml:"session_db_path"`
}

type SessionConfig struct {
	// RunTimeout bounds how long HTTP callers block on a session
	// operation, e.g. "30s".
	RunTimeout string `yaml:"run_timeout"`
	// ParticipantFallbackCap bounds participant enumeration when a dialog
	// carries no member count of its own.
	ParticipantFallbackCap int `yaml:"participant_fallback_cap"`
}

type AnalysisConfig struct {
	// Backend selects the classifier: "openai", "ollama", or "" for the
	// keyword heuristic.
	Backend    string `yaml:"backend"`
	FetchLimit int    `yaml:"fetch_limit"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() GatewayConfig {
	return GatewayConfig{
		Server: ServerConfig{
			Port:          "8096",
			WebSessionTTL: "24h",
		},
		Platform: PlatformConfig{
			BridgeURL:     "ws://localhost:8097/rpc",
			SessionDBPath: "/data/sessions",
		},
		Session: SessionConfig{
			RunTimeout:             "30s",
			ParticipantFallbackCap: 200,
		},
		Analysis: AnalysisConfig{
			FetchLimit: 100,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides on top.
func Load(path string) (GatewayConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Warn("Config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse the config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv maps deployment environment variables onto the config.
func applyEnv(cfg *GatewayConfig) {
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("WEB_SESSION_TTL"); v != "" {
		cfg.Server.WebSessionTTL = v
	}
	if v := os.Getenv("BRIDGE_URL"); v != "" {
		cfg.Platform.BridgeURL = v
	}
	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("Ignoring non-numeric TELEGRAM_API_ID", "value", v)
		} else {
			cfg.Platform.APIID = id
		}
	}
	if v := os.Getenv("TELEGRAM_API_HASH"); v != "" {
		cfg.Platform.APIHash = v
	}
	if v := os.Getenv("SESSION_DB_PATH"); v != "" {
		cfg.Platform.SessionDBPath = v
	}
	if v := os.Getenv("SESSION_RUN_TIMEOUT"); v != "" {
		cfg.Session.RunTimeout = v
	}
	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		cfg.Analysis.Backend = v
	}
	if v := os.Getenv("MESSAGE_FETCH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			slog.Warn("Ignoring invalid MESSAGE_FETCH_LIMIT", "value", v)
		} else {
			cfg.Analysis.FetchLimit = n
		}
	}
}

// Timeout parses the session run timeout, falling back to fallback on a
// missing or malformed value.
func (c SessionConfig) Timeout(fallback time.Duration) time.Duration {
	return parseDuration(c.RunTimeout, fallback)
}

// TTL parses the web session TTL, falling back to fallback on a missing or
// malformed value.
func (c ServerConfig) TTL(fallback time.Duration) time.Duration {
	return parseDuration(c.WebSessionTTL, fallback)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration, using default", "value", raw, "default", fallback)
		return fallback
	}
	return d
}
