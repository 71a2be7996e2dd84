package main

import (
	"log"

	"happyhomes-payments/cmd"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
