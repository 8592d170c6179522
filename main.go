// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/invowk/extman/cmd/extman"

func main() {
	cmd.Execute()
}
