package main

import "github.com/jmcleod/greetd-stub/cmd/greetd-stub/cmd"

func main() {
	cmd.Execute()
}
