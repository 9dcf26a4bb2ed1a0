package main

import "github.com/testlab-dev/appharness/pkg/cli"

func main() {
	cli.Execute()
}
