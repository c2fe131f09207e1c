package main

import "github.com/rupeshkmr/phiflow/cmd"

func main() {
	cmd.Execute()
}
