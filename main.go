package main

import "Romaly/cmd"

func main() {
	cmd.Execute()
}
