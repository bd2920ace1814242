package main

import "github.com/bz888/sagan/cmd"

func main() {
	cmd.Execute()
}
