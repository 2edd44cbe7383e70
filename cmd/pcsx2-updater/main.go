package main

import "github.com/oshokin/pcsx2-updater/cmd/pcsx2-updater/cmd"

func main() {
	cmd.Execute()
}
