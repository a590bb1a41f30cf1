package main

import "github.com/chimeworks/gochime/cmd"

func main() {
	cmd.Execute()
}
