package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"suteravr/internal/wire"
	"suteravr/server/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("suteravr clocking-server %s (schema %s)\n", Version, wire.SchemaVersion)
		return true
	case "status":
		return cliStatus(dbPath)
	case "worlds":
		return cliWorlds(args[1:], dbPath)
	case "settings":
		return cliSettings(args[1:], dbPath)
	case "backup":
		return cliBackup(args[1:], dbPath)
	default:
		return false
	}
}

func openStore(dbPath string) *store.Store {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func cliStatus(dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	name, _, _ := st.GetSetting("server_name")
	n, _ := st.WorldCount()
	fmt.Printf("Server: %s\n", name)
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Worlds: %d\n", n)
	fmt.Printf("Version: %s\n", Version)
	return true
}

func cliWorlds(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		worlds, err := st.Worlds()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(worlds) == 0 {
			fmt.Println("No worlds seeded.")
			return true
		}
		for _, w := range worlds {
			fmt.Printf("  instance %d -> world %d\n", w.InstanceID, w.WorldID)
		}
		return true
	}

	if args[0] == "add" && len(args) > 2 {
		instance, err1 := strconv.ParseUint(args[1], 10, 32)
		world, err2 := strconv.ParseUint(args[2], 10, 32)
		if err1 != nil || err2 != nil {
			fmt.Fprintf(os.Stderr, "instance and world must be numeric ids\n")
			os.Exit(1)
		}
		if err := st.AddWorld(uint32(instance), uint32(world)); err != nil {
			fmt.Fprintf(os.Stderr, "error adding world: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded instance %d for world %d\n", instance, world)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: server worlds [list|add <instance> <world>]\n")
	os.Exit(1)
	return true
}

func cliSettings(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		settings, err := st.GetAllSettings()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(settings, "", "  ")
		fmt.Println(string(out))
		return true
	}

	if args[0] == "set" && len(args) > 2 {
		key, value := args[1], args[2]
		if err := st.SetSetting(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: server settings [list|set <key> <value>]\n")
	os.Exit(1)
	return true
}

func cliBackup(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	outPath := "suteravr-backup.db"
	if len(args) > 0 {
		outPath = args[0]
	}

	if err := st.Backup(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database backed up to %s\n", outPath)
	return true
}
