package main

import "github.com/jfmyers9/encore/cmd"

func main() {
	cmd.Execute()
}
