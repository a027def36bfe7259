package main

import "auction-server/cmd"

func main() {
	cmd.Execute()
}
