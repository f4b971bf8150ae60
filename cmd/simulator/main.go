package main

import (
	"context"
	"log"
	"time"

	"campus-market/internal/utils"
	"campus-market/simulator"
)

func main() {
	config := simulator.SimConfig{
		NumUsers:         10,
		NumListings:      5,
		SimulationTime:   5 * time.Minute,
		MessageFrequency: 6.0, // messages per user per minute
		DisconnectRate:   0.01,
		ReconnectRate:    0.05,
		ZipfS:            1.07,
		EngineURL:        "http://localhost:8080",
	}

	logger, err := utils.NewLogger(true)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	sim := simulator.NewSimulator(config, logger)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("Simulation completed. Final metrics:")
	log.Printf("- Total users: %d", metrics.TotalUsers)
	log.Printf("- Threads opened: %d", metrics.TotalThreads)
	log.Printf("- Messages sent: %d", metrics.TotalMessages)
	log.Printf("- Live sessions at end: %d", metrics.LiveSessions)
	log.Printf("- Total requests: %d (failed: %d)", metrics.TotalRequests, metrics.FailedRequests)
	log.Printf("- Average latency: %v", metrics.AverageLatency)
}
