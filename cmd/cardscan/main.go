package main

import "github.com/grovecrm/cardscan/cmd/cardscan/cmd"

func main() {
	cmd.Execute()
}
