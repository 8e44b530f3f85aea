package main

import "testclients/cmd"

func main() {
	cmd.Execute()
}
