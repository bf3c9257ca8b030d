package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"ps2cfg/cmd/cli/command"
)

// 打印欢迎信息
func printWelcomeMessage() {
	fmt.Println("ps2cfg REPL. Type 'exit' to quit.")
	fmt.Println("Type 'help' to see the list of available commands.")
}

// 打印帮助信息
func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  decode <file>     Decode a configuration file into sections.")
	fmt.Println("  patches <file>    Extract 0x0A patches as PNACH / 0x2C report.")
	fmt.Println("  opcodes           List the opcode catalog.")
	fmt.Println("  importdb <tsv>    Import the game ID / hash table.")
	fmt.Println("  convert           Run the external converter.")
	fmt.Println("  help              Show this help message.")
	fmt.Println("  exit              Exit the REPL.")
}

func main() {
	// 带参数时直接执行一次
	if len(os.Args) > 1 {
		if err := command.NewRootCommand().Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	printWelcomeMessage()

	// 进入 REPL 循环
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(input) {
		case "exit":
			fmt.Println("Exiting ps2cfg...")
			return
		case "help":
			printHelp()
			continue
		case "":
			continue
		}

		// 每次新建根命令，避免上一次的 flag 残留
		rootCmd := command.NewRootCommand()
		rootCmd.SetArgs(strings.Fields(input))
		if err := rootCmd.Execute(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}
