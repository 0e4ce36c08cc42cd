package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/lingobot/internal/config"
	"github.com/nextlevelbuilder/lingobot/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("lingobot doctor")
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	checkSecret("Telegram token", cfg.Telegram.Token)
	checkSecret("Provider API key", cfg.Provider.APIKey)
	fmt.Printf("  Model:    %s\n", cfg.Provider.Model)

	fmt.Println()
	fmt.Printf("  Store:    %s", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Printf(" (FAILED: %s)\n", err)
		return
	}
	st.Close()
	fmt.Println(" (OK)")
}

func checkSecret(name, value string) {
	status := "MISSING"
	if value != "" {
		status = "set"
	}
	fmt.Printf("  %-17s %s\n", name+":", status)
}
