package main

import "autobuild/internal/cli"

func main() {
	cli.Execute()
}
