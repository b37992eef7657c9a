/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wallebot",
	Short: "WALL-E shopping assistant bot",
	Long: "WALL-E is Wallmart's Telegram shopping assistant: it answers product\n" +
		"searches, logs order-status queries, chats with customers, and can\n" +
		"drive a browser through an add-to-cart flow on request.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Credentials may live in a local .env file; absence is not an error.
	_ = godotenv.Load()
}
