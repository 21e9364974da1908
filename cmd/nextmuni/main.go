package main

import cmd "github.com/rohmanhakim/nextmuni/internal/cli"

func main() {
	cmd.Execute()
}
