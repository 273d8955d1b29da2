// SPDX-License-Identifier: MPL-2.0

// Package issue holds the user-facing side of errors: ActionableError, which
// carries suggestions next to its cause, and a catalog of Markdown
// explanations rendered with glamour for the failures users hit most.
package issue
