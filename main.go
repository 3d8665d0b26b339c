package main

import "tablechat/cmd"

func main() {
	cmd.Execute()
}
