// Package main is the entry point for the kernel VFS service.
//
// The server mediates every storage operation through an intent
// gateway: policy decides and the kernel executes against
// scheme-mounted adapters, with the audit ledger sealing the outcome
// into a hash chain. Boot is gated on governance; the service refuses
// to start unless the kernel freeze marker is present and the
// persisted chain verifies.
//
// The server provides:
//   - JSON API for intents, lifecycle, audit queries, and governance
//   - WebSocket streaming of sealed audit entries
//   - Prometheus metrics
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
