package main

import "github.com/matt-g-everett/frametx/cmd"

func main() {
	cmd.Execute()
}
