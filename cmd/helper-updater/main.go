package main

import "github.com/shamu4life/helper-scripts/cmd/helper-updater/cmd"

func main() {
	cmd.Execute()
}
