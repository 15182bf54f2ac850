package main

import (
	"github.com/shizukutanaka/Kifuda/cmd/kifuda/commands"
)

func main() {
	commands.Execute()
}
