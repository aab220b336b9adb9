package main

import (
	"log"
	"os"
)

func cleanup() {
	os.Exit(2)
}

func main() {
	defer cleanup()

	if len(os.Args) > 3 {
		log.Fatalf("too many args: %d", len(os.Args)) // want "avoid using log.Fatalf in main.main"
	}
	if len(os.Args) > 2 {
		log.Fatal("too many args") // want "avoid using log.Fatal in main.main"
	}

	func() {
		os.Exit(1) // want "avoid using os.Exit in main.main"
	}()

	os.Exit(0) // want "avoid using os.Exit in main.main"
}
