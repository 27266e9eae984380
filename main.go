package main

import "facesort/cmd"

func main() {
	cmd.Execute()
}
