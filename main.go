package main

import (
	"os"

	"github.com/a-schulz/esp32-temperature-sensor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
