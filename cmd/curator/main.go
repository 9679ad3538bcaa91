package main

import (
	"os"

	"kelp.press/curator/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
