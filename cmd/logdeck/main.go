package main

import "github.com/crimson-sun/logdeck/internal/cmd"

func main() {
	cmd.Execute()
}
