package main

import (
	"os"

	eventsourcecmder "github.com/papercomputeco/eventsource/cmd/eventsource"
)

func main() {
	cmd := eventsourcecmder.NewEventsourceCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
