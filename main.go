package main

import "github.com/kamusis/catmatch/cmd"

func main() {
	cmd.Execute()
}
