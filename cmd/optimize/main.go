// Command optimize runs the optimization pipeline over an itinerary JSON file
// and writes the result to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"itinerary-optimizer/internal/config"
	"itinerary-optimizer/internal/enrich"
	"itinerary-optimizer/internal/geocoding"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	withEnrich := flag.Bool("enrich", false, "geocode activities without coordinates first")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-enrich] itinerary.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read itinerary: %w", err)
	}
	var it models.Itinerary
	if err := json.Unmarshal(data, &it); err != nil {
		return fmt.Errorf("failed to parse itinerary: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	input := &it
	if *withEnrich {
		geocoder := geocoding.NewNominatimGeocoder(cfg.Geocoding())
		enriched, stats, err := enrich.New(geocoder, nil, nil, cfg.GeocoderConcurrency).Enrich(ctx, input)
		if err != nil {
			return err
		}
		log.Printf("[ENRICH] geocoded=%d failed=%d", stats.Geocoded, stats.Failed)
		input = enriched
	}

	res, err := optimizer.New(nil, nil, cfg.Optimizer).Optimize(ctx, input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("optimization unsuccessful: state=%s errors=%d", res.State, len(res.Errors))
	}
	return nil
}
