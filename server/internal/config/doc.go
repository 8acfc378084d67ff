// Package config loads canvashub-server settings from the `server:` section
// of config.yaml.
//
// Config fields:
//   - Host                       - bind interface (default: all)
//   - Port                       - HTTP/WebSocket listen port (default 8765)
//   - Limits.MessagesPerSecond   - per-session edit rate (default 20, 0 = off)
//   - Limits.Burst               - token-bucket depth (default 40)
//   - Limits.MaxMessageBytes     - inbound frame cap (default 1 MiB)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) hot-reloads the file via fsnotify so limit
// changes apply without a restart.
package config
