package main

import "github.com/nibog-labs/notifyd/cmd"

func main() {
	cmd.Execute()
}
