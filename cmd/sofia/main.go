package main

import "sofia/internal/cli"

func main() {
	cli.Execute()
}
