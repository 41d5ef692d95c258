// Command demoserver serves fake profile pages for trying freename locally.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/freename/internal/demoserver"
)

func main() {
	cfg := demoserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("Taken ids:", cfg.Taken)
	fmt.Printf("Every %d. lookup answers 429\n", cfg.RateLimitEvery)
	fmt.Println()
	fmt.Printf("Try: freename --url-template http://localhost:%d/id/{} --rate-limit-sleep 1s\n", cfg.Port)
	fmt.Println()

	server := demoserver.NewDemoServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
