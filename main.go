package main

import "grandline/cmd"

func main() {
	cmd.Execute()
}
