package main

import (
	"os"

	"passage/cmd/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
