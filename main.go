package main

import "github.com/jmehdipour/clipgate/cmd"

func main() {
	cmd.Execute()
}
