package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/wwwzy/EDAgent/internal/cli"
)

func main() {
	// .env 可选，已存在的环境变量优先
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
