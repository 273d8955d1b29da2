// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// turns CUE errors into messages that point at the offending field, such as
// config.cue: watch.debounce: conflicting values "soon" and =~"^[0-9]+(ms|s)$".
package cueutil
