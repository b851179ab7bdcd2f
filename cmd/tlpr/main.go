package main

import "github.com/MeKo-Tech/tlpr/cmd/tlpr/cmd"

func main() {
	cmd.Execute()
}
