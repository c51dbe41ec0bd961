// Package config provides configuration options for the bwfs daemon,
// merged from an optional JSON config file and environment variables.
// Command-line flags are layered on top by the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Options holds the daemon configuration values.
type Options struct {
	// Socket is the control socket path. Empty means the default
	// runtime-dir location.
	Socket string `json:"socket"`

	// BWBin is the path to the bw binary.
	BWBin string `json:"bw_bin"`

	// AllowOther lets other users access the mounted filesystem.
	AllowOther bool `json:"allow_other"`

	// LogLevel is the zap log level.
	LogLevel string `json:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Options {
	return &Options{BWBin: "bw", LogLevel: "info"}
}

// Load reads options from the JSON file at path (if it exists) and then
// applies environment overrides: BWFS_SOCKET, BWFS_BW_BIN, BWFS_LOG_LEVEL.
func Load(path string) (*Options, error) {
	o := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil && os.IsNotExist(err):
			// Optional file; defaults apply.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, o); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if v := os.Getenv("BWFS_SOCKET"); v != "" {
		o.Socket = v
	}
	if v := os.Getenv("BWFS_BW_BIN"); v != "" {
		o.BWBin = v
	}
	if v := os.Getenv("BWFS_LOG_LEVEL"); v != "" {
		o.LogLevel = v
	}

	return o, nil
}
