/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "wallebot/cmd"

func main() {
	cmd.Execute()
}
