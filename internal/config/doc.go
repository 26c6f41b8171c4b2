// Package config loads and watches the vizor-etl configuration file.
//
// Top-level types:
//   - Config: log_level, etl, source, destination, trigger, notify, alerts,
//     metrics, server
//   - ETLConfig: delimiter, min_columns, timestamp_layouts, timezone,
//     trend_threshold, trusted_prefix
//   - StoreConfig: kind (fs|memory|s3|sql) plus the fields of that backend;
//     DSN() resolves the SQL connection string from dsn_env
//   - DestinationConfig: a StoreConfig plus prefix and date_layout
//   - AuthConfig, AlertsConfig, WebhookConfig: secrets are never written in
//     the file, only the names of the environment variables holding them
//
// Load(path) reads the YAML file, applies defaults, then validates enums,
// ports and layouts. Tuning() and StoreOptions() translate the parsed tree
// into the types the pipeline and storage packages consume.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. A reload that fails to parse or
// validate is logged and skipped.
package config
