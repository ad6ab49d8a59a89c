package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/docvault/docfs/internal/testinfra"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var hostPort string
	flag.StringVar(&hostPort, "p", "", "fixed host port for the database")
	flag.Parse()

	usage := `
Run a disposable docfs MariaDB with the environment variables from the .env file.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-p HOST_PORT]

ENV_FILE_PATH: path to the .env file
HOST_PORT: bind the database to a fixed local port

example
  testcontainers -f /path/to/something/.env -p 3306
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	ctx := context.Background()
	db, err := testinfra.StartMariaDB(ctx, testinfra.MariaDBOptions{
		Image:        os.Getenv("DB_IMAGE"),
		Database:     os.Getenv("DB_DATABASE"),
		RootPassword: os.Getenv("DB_ROOT_PASSWORD"),
		AppUser:      os.Getenv("DB_APP_USER"),
		AppPassword:  os.Getenv("DB_APP_PASSWORD"),
		HostPort:     hostPort,
	})
	if err != nil {
		log.Fatalf("Failed to start database container: %v\n", err)
	}
	log.Printf("DSN=%s\n", db.DSN())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	sig := <-sigs
	log.Printf("\nReceived signal: %v, terminating database container...\n", sig)
	db.Terminate(ctx)
}
