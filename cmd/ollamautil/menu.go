package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runMenu is the bare-invocation interactive loop. Every option calls the
// same flow functions the subcommands use.
func runMenu(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.requireRoots(); err != nil {
		return err
	}

	for {
		printMenuHeader(a)
		choice, err := readLine("> ")
		if err != nil {
			return nil // EOF
		}

		var flowErr error
		switch choice {
		case "1":
			flowErr = listFlow(a)
		case "2":
			flowErr = statusFlow(a)
		case "3":
			flowErr = menuMigrate(a)
		case "4":
			flowErr = menuToggle(a)
		case "5":
			flowErr = removeFlow(a, nil, "both", false)
		case "6":
			flowErr = menuPull(a)
		case "7":
			flowErr = menuPush(a)
		case "8":
			flowErr = repairFlow(a, nil, "", "keep", 0)
		case "q", "Q", "quit", "exit":
			return nil
		case "":
			continue
		default:
			fmt.Printf("Unknown choice %q.\n", choice)
			continue
		}

		if flowErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", flowErr)
		}
		if _, err := readLine("\nPress return to continue..."); err != nil {
			return nil
		}
	}
}

func printMenuHeader(a *app) {
	fmt.Println()
	fmt.Println("ollamautil - Ollama cache manager")
	if cur, err := a.ptr.Current(); err == nil {
		fmt.Printf("Active cache: %s (%s)\n", cur.ID, formatPath(cur.Root))
	} else {
		fmt.Println("Active cache: unknown")
	}
	fmt.Println()
	fmt.Println("  1) List models")
	fmt.Println("  2) Show status")
	fmt.Println("  3) Migrate models between caches")
	fmt.Println("  4) Toggle the active cache")
	fmt.Println("  5) Remove models")
	fmt.Println("  6) Pull a model")
	fmt.Println("  7) Push a model")
	fmt.Println("  8) Repair from the registry")
	fmt.Println("  q) Quit")
}

func menuMigrate(a *app) error {
	defaultFrom := "primary"
	if cur, err := a.ptr.Current(); err == nil {
		defaultFrom = string(cur.ID)
	}

	from, err := readLine(fmt.Sprintf("Migrate from which cache? (primary/secondary) [%s]: ", defaultFrom))
	if err != nil {
		return err
	}
	if from == "" {
		from = defaultFrom
	}
	overwrite := confirm("Overwrite files that already exist at the destination?")
	return migrateFlow(a, migrateOptions{from: from, overwrite: overwrite})
}

func menuToggle(a *app) error {
	migrateFirst := confirm("Copy models to the target before switching?")
	return toggleFlow(a, "", migrateFirst, false)
}

func menuPull(a *app) error {
	name, err := readLine("Model to pull (e.g. gemma2:latest): ")
	if err != nil || name == "" {
		return err
	}
	return pullFlow(a, []string{name})
}

func menuPush(a *app) error {
	name, err := readLine("Model to push (e.g. user/custom:latest): ")
	if err != nil || name == "" {
		return err
	}
	return pushFlow(a, []string{name})
}
