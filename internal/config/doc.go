// SPDX-License-Identifier: MPL-2.0

// Package config loads deltagraph settings with Viper, using CUE as the file
// format.
//
// A file passed with --config wins. Otherwise deltagraph.cue in the working
// directory is used, then config.cue in the user configuration directory
// ($XDG_CONFIG_HOME/deltagraph on Linux, ~/Library/Application Support/deltagraph
// on macOS, %APPDATA%\deltagraph on Windows). Files are validated against the
// embedded config_schema.cue before they reach Viper, and DELTAGRAPH_* environment
// variables override individual keys (DELTAGRAPH_WATCH_DEBOUNCE=250ms).
package config
