package main

import "github.com/stevehiehn/recipe-executor/cmd"

func main() {
	cmd.Execute()
}
