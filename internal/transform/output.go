// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Kind classifies a transformed file.
type Kind string

const (
	// KindModule is a JavaScript module.
	KindModule Kind = "module"
	// KindJSON is a JSON file, bundled as a module exporting its value.
	KindJSON Kind = "json"
	// KindAsset is a binary asset.
	KindAsset Kind = "asset"
)

// Output is the payload the transformer attaches to every module.
type Output struct {
	Kind Kind   `json:"kind" msgpack:"kind"`
	Code string `json:"-" msgpack:"code"`
	// Hash is the xxhash64 of the file contents.
	Hash uint64 `json:"hash" msgpack:"hash"`
	Size int    `json:"size" msgpack:"size"`
}

// HashHex returns the content hash as fixed width hex.
func (o Output) HashHex() string {
	return fmt.Sprintf("%016x", o.Hash)
}

func contentHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}
