package main

import (
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/fittrack/internal/hashpw"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	if err := hashpw.Run(os.Stderr, os.Stdout, *cost); err != nil {
		log.Fatalf("hashpw: %v", err)
	}
}
