package main

import "github.com/twinlog/internal/cli/cmd"

func main() {
	cmd.Execute()
}
