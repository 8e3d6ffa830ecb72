package main

import "github.com/latchhq/latch/cmd"

func main() {
	cmd.Execute()
}
