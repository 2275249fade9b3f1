package main

import (
	"github.com/joho/godotenv"

	"attendance-sync/cmd"
)

func main() {
	godotenv.Load()

	cmd.Execute()
}
