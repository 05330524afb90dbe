package main

import (
	"log"

	approuters "github.com/hungvu25/Web-chat-HungVu/internal/app_routers"
	"github.com/hungvu25/Web-chat-HungVu/internal/configuration"
)

func main() {
	container, err := configuration.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
