package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"teach-button-service/internal/canbus"
	"teach-button-service/internal/core"
	"teach-button-service/internal/hardware"
	"teach-button-service/internal/logger"
	"teach-button-service/internal/messaging"
)

func main() {
	var serviceLogLevel int
	var canInterface string
	var redisHost string
	var redisPort int
	var ledChip string
	var ledLine int

	flag.IntVar(&serviceLogLevel, "log", 3, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	flag.StringVar(&canInterface, "can", "can0", "CAN interface the teach button is connected to")
	flag.StringVar(&redisHost, "redis-host", "127.0.0.1", "Redis host")
	flag.IntVar(&redisPort, "redis-port", 6379, "Redis port")
	flag.StringVar(&ledChip, "led-chip", hardware.DefaultLedChip, "GPIO chip of the status LED")
	flag.IntVar(&ledLine, "led-line", hardware.DefaultLedLine, "GPIO line of the status LED")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	l := logger.NewLogger(stdLogger, logger.LogLevel(serviceLogLevel))

	l.Infof("Starting teach button service...")

	bus := canbus.NewDriver(canInterface, l)
	redis := messaging.NewRedisClient(redisHost, redisPort, l)
	led := hardware.NewStatusLed(ledChip, ledLine, l)

	system := core.NewTeachSystem(bus, redis, led, l)
	if err := system.Start(); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	l.Infof("Shutdown complete")
}
