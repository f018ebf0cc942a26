// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across hybridqa.
//
// # Usage
//
//	logger, err := logging.New(logging.Options{Level: "debug", Format: "console"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Named("router").Info("dispatch", zap.String("mode", "structured"))
package logging
