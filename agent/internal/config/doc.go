// Package config loads the agent configuration file and watches files for
// changes.
//
// Top-level types:
//   - Config{Agent, TrustStores} — full config tree parsed from YAML
//   - AgentConfig — listen_address, metrics_path, watch
//   - TrustStoreConfig — path, type (auto|jks|pkcs12), password_env,
//     password; Secret() resolves the password from the environment first
//
// Load(path) reads the YAML file, applies defaults (":9219", "/metrics",
// type auto), cleans trust store paths, then validates required fields and
// enums.
//
// Watch(ctx, paths, onChange) uses fsnotify on the parent directories and
// calls onChange with the cleaned path of each watched file that changed.
// Files replaced through rename (atomic-save editors, keytool) or deleted
// and recreated stay tracked.
package config
