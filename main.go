package main

import "github.com/quantfold/probedge/cmd"

func main() {
	cmd.Execute()
}
