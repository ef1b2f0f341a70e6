package main

import "github.com/felixgeelhaar/persona/cmd/persona/cli"

func main() {
	cli.Execute()
}
