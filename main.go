// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/deltagraph/deltagraph/cmd/deltagraph"

func main() {
	cmd.Execute()
}
