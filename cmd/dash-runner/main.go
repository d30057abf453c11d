package main

import "github.com/devicelab-dev/dash-runner/pkg/cli"

func main() {
	cli.Execute()
}
