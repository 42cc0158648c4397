package main

import "github.com/specht/specht-client/cmd"

func main() {
	cmd.Execute()
}
