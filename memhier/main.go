// Package main is the entry of the memhier command.
package main

import "github.com/sarchlab/memhier/memhier/cmd"

func main() {
	cmd.Execute()
}
