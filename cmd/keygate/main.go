package main

import "github.com/filipexyz/keygate/internal/cli/cmd"

func main() {
	cmd.Execute()
}
