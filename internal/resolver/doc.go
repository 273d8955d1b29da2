// SPDX-License-Identifier: MPL-2.0

// Package resolver maps the dependency names found in JavaScript sources to
// absolute file paths, following the Node.js module resolution rules with
// the bundler extensions: platform specific files (foo.ios.js), .native
// files, the package.json "browser" field and additional node_modules
// locations.
//
// The file system is accessed through afero so that resolution can be
// exercised against an in-memory tree.
package resolver
