// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/hybridqa/internal/index"
	"github.com/jeranaias/hybridqa/internal/indexer"
	"github.com/jeranaias/hybridqa/internal/llm"
	"github.com/jeranaias/hybridqa/internal/ollama"
	"github.com/jeranaias/hybridqa/internal/router"
	"github.com/jeranaias/hybridqa/internal/storage"
	"github.com/jeranaias/hybridqa/internal/univdb"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the model backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates missing data: database, index or documents
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ConfigError wraps a failure to load or apply configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ExitCode maps an error onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cfgErr *ConfigError
	var usageErr *UsageError
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.As(err, &usageErr),
		errors.Is(err, router.ErrEmptyQuery),
		errors.Is(err, router.ErrQueryTooLong):
		return ExitUsageError
	case errors.Is(err, context.DeadlineExceeded), ollama.IsTimeout(err):
		return ExitTimeoutError
	case errors.Is(err, llm.ErrGenerationUnavailable), ollama.IsNotRunning(err):
		return ExitNetworkError
	case errors.Is(err, index.ErrIndexUnavailable),
		errors.Is(err, indexer.ErrNoDocuments),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, univdb.ErrDatabaseMissing),
		errors.Is(err, os.ErrNotExist):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

// hint suggests the next step for errors a user can fix.
func hint(err error) string {
	switch {
	case errors.Is(err, index.ErrIndexUnavailable):
		return "build the index first: hybridqa index"
	case errors.Is(err, univdb.ErrDatabaseMissing):
		return "load the dataset first: hybridqa ingest"
	case errors.Is(err, indexer.ErrNoDocuments):
		return "add .txt, .md or .pdf files to the documents directory"
	case ollama.IsNotRunning(err), errors.Is(err, llm.ErrGenerationUnavailable):
		return "start the backend with: ollama serve"
	case ollama.IsModelNotFound(err):
		return "pull the model with: ollama pull <model>"
	case errors.Is(err, router.ErrEmptyQuery):
		return `pass a question, e.g. hybridqa ask "서울 지역 평균 취업률은?"`
	default:
		return ""
	}
}

// DisplayError prints err as a JSON envelope on stdout in JSON mode, and as
// a message with an optional hint on stderr otherwise.
func DisplayError(stdout, stderr io.Writer, err error, jsonMode bool) {
	if jsonMode {
		_ = NewJSONErrorResponse("", err).Write(stdout)
		return
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if h := hint(err); h != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", h)
	}
}
