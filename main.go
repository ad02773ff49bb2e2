package main

import "github.com/xvierd/timeline-cli/cmd"

func main() {
	cmd.Execute()
}
