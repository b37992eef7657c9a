/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"wallebot/pkg/bus"
	"wallebot/pkg/config"
	"wallebot/pkg/logger"
	"wallebot/pkg/router"

	"github.com/spf13/cobra"
)

var questionText string

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant one question or start an interactive chat",
	Long:  "Runs the full routing pipeline from the terminal: the question is classified and answered by the same search, ledger, and chat backends the bot uses.",
	Run: func(cmd *cobra.Command, args []string) {
		question := resolveQuestion(args)

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)

		p, err := buildPipeline(cfg, slog.Default())
		if err != nil {
			fmt.Printf("failed to initialize pipeline: %v\n", err)
			return
		}
		defer p.Close()

		ctx := context.Background()
		if question != "" {
			askOnce(ctx, p.router, question)
			return
		}

		runInteractive(ctx, p.router)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&questionText, "question", "q", "", "question text to send")
}

func resolveQuestion(args []string) string {
	if value := strings.TrimSpace(questionText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func askOnce(ctx context.Context, r *router.Router, question string) {
	reply := r.HandleMessage(ctx, cliMessage(question))
	printReply(reply)
}

func runInteractive(ctx context.Context, r *router.Router) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("🛍️ ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Printf("input error: %v\n", err)
			}
			return
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if isExitCommand(question) {
			return
		}

		printReply(r.HandleMessage(ctx, cliMessage(question)))
	}
}

func cliMessage(question string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    "cli",
		SenderID:   "cli",
		ChatID:     "cli",
		Kind:       bus.KindText,
		Content:    question,
		ReceivedAt: time.Now().UTC(),
	}
}

func printReply(reply bus.OutboundMessage) {
	if reply.Empty() {
		return
	}

	fmt.Println("🤖 " + reply.Content)
	for _, link := range reply.InlineLinks {
		fmt.Printf("   %s: %s\n", link.Label, link.URL)
	}
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "/exit", "/quit":
		return true
	default:
		return false
	}
}
