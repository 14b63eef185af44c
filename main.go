package main

import "github.com/kozaktomas/facevote/cmd"

func main() {
	cmd.Execute()
}
