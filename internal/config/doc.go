// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for hybridqa.
//
// Supports both TOML and JSON configuration formats, with built-in defaults,
// environment variable overrides, and validation that reports every problem
// at once.
//
// # Key Types
//
//   - Config: the complete configuration
//   - OllamaConfig: generation and embedding backend
//   - DataConfig: SQLite dataset, vector index, documents and chat log paths
//   - RoutingConfig: ambiguity strategy and keyword sets
//   - ValidateErrors: every validation failure found
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (HYBRIDQA_*)
//   - ./hybridqa.toml
//   - ./hybridqa.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	kw, _ := cfg.Keywords()
//	strategy, _ := cfg.Strategy()
package config
