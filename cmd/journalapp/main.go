// Command journalapp serves the journal user API over HTTP and gRPC.
package main

import (
	"github.com/patric-chuzhbe/journalapp/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		panic(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		panic(err)
	}
}
