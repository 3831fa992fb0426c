package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"gosbic/internal/config"
	"gosbic/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app := server.NewApp()
	addr := ":" + cfg.Server.Port
	log.Printf("Starting scoring API on %s", addr)
	log.Fatal(http.ListenAndServe(addr, app.Handler()))
}
