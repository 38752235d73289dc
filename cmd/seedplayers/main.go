// Command seedplayers creates or updates players in the Postgres store.
//
//	seedplayers alice bob:1250 carol:900
//
// Ids without a rating get DEFAULT_RATING.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/allihive/ft-transcendence-sub001/internal/repository"
	"github.com/allihive/ft-transcendence-sub001/pkg/database"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type seedConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	DefaultRating int    `env:"DEFAULT_RATING" envDefault:"1000"`
}

type seed struct {
	id     string
	rating int
}

func main() {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[seedConfig]()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	seeds, err := parseSeeds(os.Args[1:], cfg.DefaultRating)
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	if len(seeds) == 0 {
		log.Fatal("usage: seedplayers id[:rating] ...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultOptions())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database successfully!")

	repo := repository.NewPlayerRepository(db)
	for _, s := range seeds {
		if err := repo.UpsertPlayer(ctx, s.id, s.rating); err != nil {
			log.Fatalf("Failed to seed %s: %v", s.id, err)
		}
	}

	fmt.Println("\n📋 Seeded players:")
	for _, s := range seeds {
		p, err := repo.FindPlayer(ctx, s.id)
		if err != nil {
			log.Fatalf("Failed to verify %s: %v", s.id, err)
		}
		fmt.Printf("  - %s: rating %d (%s)\n", p.ID, p.Rating, p.Status)
	}
}

func parseSeeds(args []string, defaultRating int) ([]seed, error) {
	seeds := make([]seed, 0, len(args))
	for _, arg := range args {
		id, ratingStr, hasRating := strings.Cut(arg, ":")
		if id == "" {
			return nil, fmt.Errorf("empty player id in %q", arg)
		}
		rating := defaultRating
		if hasRating {
			r, err := strconv.Atoi(ratingStr)
			if err != nil || r < 0 {
				return nil, fmt.Errorf("invalid rating in %q", arg)
			}
			rating = r
		}
		seeds = append(seeds, seed{id: id, rating: rating})
	}
	return seeds, nil
}
