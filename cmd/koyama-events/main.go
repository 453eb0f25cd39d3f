package main

import "github.com/tkonno/koyama-events/internal/cli"

func main() {
	cli.Execute()
}
