package main

import "github.com/repopulse/repopulse/cmd"

func main() {
	cmd.Execute()
}
