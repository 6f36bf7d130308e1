// Package config defines the YAML configuration surface of the broker and
// its loader.
//
// Configuration lives in a single config.yaml inside the configuration
// directory (~/.config/unshub by default, overridable with --config). A
// missing file is normal and loads the built-in defaults; malformed YAML is
// an error. Intervals are written as Go duration strings through the
// Duration wrapper.
//
// Sections map one-to-one onto the components they tune: logging, storage
// (provider selector plus connection path), pipeline (queues, batching,
// retries, retention), manager (health loop and lifecycle timeouts),
// automapper, telemetry, and an optional list of seed connections that is
// upserted into the connection repository at bootstrap.
package config
