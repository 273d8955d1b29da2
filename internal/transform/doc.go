// SPDX-License-Identifier: MPL-2.0

// Package transform turns source files into the dependency lists the module
// graph consumes. JavaScript is parsed with tree-sitter; assets and JSON
// files have no dependencies. Results are cached by content hash.
package transform
