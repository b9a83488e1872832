// Copyright 2025 Support Chatbot Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides routectl, an operator CLI for inspecting the
// routing pipeline without calling any LLM. It runs the classifier,
// sentiment analyzer, and router locally.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/support-chatbot/internal/config"
	"github.com/your-org/support-chatbot/internal/intent"
	"github.com/your-org/support-chatbot/internal/router"
	"github.com/your-org/support-chatbot/internal/sentiment"
)

var (
	configPath  string
	inputFile   string
	serviceURL  string
	remoteStats bool
)

// routeOutput is the JSON emitted per routed message
type routeOutput struct {
	Message              string  `json:"message"`
	Intent               string  `json:"intent"`
	Confidence           float64 `json:"confidence"`
	Bucket               string  `json:"bucket"`
	Action               string  `json:"action"`
	Reason               string  `json:"reason"`
	CostTier             string  `json:"cost_tier"`
	Sentiment            string  `json:"sentiment"`
	SentimentScore       float64 `json:"sentiment_score"`
	EscalatedBySentiment bool    `json:"escalated_by_sentiment"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd assembles the routectl command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "routectl",
		Short: "Inspect support chatbot routing decisions",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "Path to configuration file")

	routeCmd := &cobra.Command{
		Use:   "route [message]",
		Short: "Route a message (or a file of messages) and print the decision",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRoute,
	}
	routeCmd.Flags().StringVarP(&inputFile, "file", "f", "", "File with one message per line")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the routing table, or fetch live statistics with --remote",
		RunE:  runStats,
	}
	statsCmd.Flags().BoolVarP(&remoteStats, "remote", "r", false, "Fetch live statistics from a running service")
	statsCmd.Flags().StringVarP(&serviceURL, "url", "u", "http://localhost:8080", "Chat service base URL (with --remote)")

	rootCmd.AddCommand(routeCmd, statsCmd)
	return rootCmd
}

// runRoute routes one message from the arguments or many from a file
func runRoute(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && inputFile == "" {
		return fmt.Errorf("provide a message argument or --file")
	}

	logger := zap.NewNop()

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: false,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	classifier, err := intent.NewClassifier(cfg.Models.IntentModelPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to load intent model: %w", err)
	}

	analyzer, err := sentiment.NewAnalyzer(cfg.Models.SentimentModelPath(), cfg.Sentiment.AngerKeywords, logger)
	if err != nil {
		return fmt.Errorf("failed to load sentiment model: %w", err)
	}

	intentRouter, err := router.New(cfg.Routing, cfg.Sentiment)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	route := func(message string) error {
		prediction := classifier.Predict(message)
		sent := analyzer.Analyze(message)
		decision := intentRouter.Route(prediction.Intent, prediction.Confidence, sent)

		return encoder.Encode(routeOutput{
			Message:              message,
			Intent:               prediction.Intent,
			Confidence:           prediction.Confidence,
			Bucket:               string(decision.Bucket),
			Action:               decision.Action,
			Reason:               decision.Reason,
			CostTier:             decision.CostTier,
			Sentiment:            sent.Label,
			SentimentScore:       sent.Score,
			EscalatedBySentiment: decision.EscalatedBySentiment,
		})
	}

	if len(args) == 1 {
		return route(args[0])
	}

	file, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inputFile, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := route(line); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// statsBucket summarizes one configured routing bucket
type statsBucket struct {
	Description  string  `json:"description"`
	CostTier     string  `json:"cost_tier"`
	IntentCount  int     `json:"intent_count"`
	SharePercent float64 `json:"share_percent"`
}

// statsOutput is the offline routing-table summary
type statsOutput struct {
	ConfidenceThreshold float64                `json:"confidence_threshold"`
	TotalIntents        int                    `json:"total_intents"`
	Buckets             map[string]statsBucket `json:"buckets"`
}

// runStats summarizes the configured routing table. It needs no running
// service; --remote switches to fetching live metrics instead.
func runStats(cmd *cobra.Command, _ []string) error {
	if remoteStats {
		return runRemoteStats(cmd)
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: false,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	intentRouter, err := router.New(cfg.Routing, cfg.Sentiment)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	total := intentRouter.KnownIntents()
	output := statsOutput{
		ConfidenceThreshold: intentRouter.ConfidenceThreshold(),
		TotalIntents:        total,
		Buckets:             make(map[string]statsBucket),
	}

	for bucket, info := range intentRouter.BucketInfo() {
		share := 0.0
		if total > 0 {
			share = float64(len(info.Intents)) / float64(total) * 100
		}
		output.Buckets[string(bucket)] = statsBucket{
			Description:  info.Description,
			CostTier:     info.CostTier,
			IntentCount:  len(info.Intents),
			SharePercent: share,
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// runRemoteStats fetches /stats from a running chat service
func runRemoteStats(cmd *cobra.Command) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(serviceURL + "/stats")
	if err != nil {
		return fmt.Errorf("failed to reach service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, string(body))
	}

	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("failed to decode stats: %w", err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(stats)
}
