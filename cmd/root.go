package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "botburrow",
	Short: "Botburrow agent configuration tooling",
	Long: `Botburrow agent configuration tooling.

Resolves agent definitions (config + system prompt) across the configured
git repositories, keeps local clones fresh, and manages agent registration.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
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
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/botburrow/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "The log level to use")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		dir := filepath.Join(home, ".config", "botburrow")
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0700); err != nil {
				log.Fatalf("failed to create config directory (%s): %s", dir, err)
			}
		}
		cfgFile = filepath.Join(dir, "config.yaml")
		viper.SetConfigFile(cfgFile)
	}

	viper.AutomaticEnv() // read in environment variables that match
	viper.ReadInConfig()

	viper.SetDefault("repos.file", "/etc/config/repos.json")
	viper.SetDefault("repos.secrets_dir", "/etc/secrets")
	viper.SetDefault("git.timeout", "30s")
	viper.SetDefault("git.depth", 1)
	viper.SetDefault("git.workers", 4)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("hub.url", "")
	viper.SetDefault("registry.path", defaultRegistryPath())

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	viper.BindEnv("hub.url", "HUB_URL")
	viper.BindEnv("hub.admin_key", "HUB_ADMIN_KEY")
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "registry.db"
	}
	return filepath.Join(home, ".config", "botburrow", "registry.db")
}

func printSuccess(msg string, args ...any) {
	fmt.Printf("%s %s", color.GreenString("✓"), fmt.Sprintf(msg, args...))
	fmt.Println()
}

func printWarning(msg string, args ...any) {
	fmt.Printf("%s %s", color.RedString("✕"), fmt.Sprintf(msg, args...))
	fmt.Println()
}
