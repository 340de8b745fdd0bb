package main

import "github.com/Ganeshpithani/infosys-springboard-internship/cmd/pantry/cmd"

func main() {
	cmd.Execute()
}
