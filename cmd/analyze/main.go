package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"brand-video-analyzer/internal"
	"brand-video-analyzer/internal/logging"
	"brand-video-analyzer/internal/model"
	"brand-video-analyzer/internal/pipeline"
)

func main() {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	brand := flag.String("brand", "", "brand name to detect (required)")
	videoID := flag.String("video-id", "", "existing video id in the backend index")
	youtubeURL := flag.String("youtube-url", "", "YouTube URL to ingest then analyze")
	videoURL := flag.String("video-url", "", "direct video URL to ingest then analyze")
	temperature := flag.Float64("temperature", -1, "sampling temperature (backend default if unset)")
	maxTokens := flag.Int("max-tokens", 0, "maximum tokens for generation (backend default if unset)")
	flag.Parse()

	log, err := logging.New("errors.log")
	if err != nil {
		panic(err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Errorf("config: %v", err)
		os.Exit(1)
	}

	analyzer, err := pipeline.Build(ctx, cfg, log)
	if err != nil {
		log.Errorf("build pipeline: %v", err)
		os.Exit(1)
	}

	req := model.AnalysisRequest{
		Brand:      *brand,
		VideoID:    *videoID,
		YouTubeURL: *youtubeURL,
		VideoURL:   *videoURL,
	}
	if *temperature >= 0 {
		req.Temperature = temperature
	}
	if *maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	env, err := analyzer.Analyze(ctx, req)
	if err != nil {
		log.Errorf("analyze: %v", err)
		os.Exit(1)
	}

	out, err := json.Marshal(env)
	if err != nil {
		log.Errorf("marshal envelope: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
