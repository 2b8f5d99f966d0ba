package main

import "github.com/nikolayk812/notemarket/cmd"

func main() {
	cmd.Execute()
}
