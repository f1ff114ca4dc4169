package main

import "dicelink/cmd/dicelink-cli/cmd"

func main() {
	cmd.Execute()
}
