package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// configCmd is the command to manage settings
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings",
	Long:  `Manage Specht settings.`,
}

// configShowCmd is the command to display settings
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show settings",
	Long:  `Display Specht settings.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := Container.Config
		fmt.Println("Specht Settings:")
		fmt.Printf("Config Dir: %s\n", c.ConfigDir)
		fmt.Printf("Config Extension: %s\n", c.ConfigExtension)
		fmt.Printf("Log Level: %s\n", c.LogLevel)
		fmt.Printf("Log File: %s\n", c.LogFile)
		fmt.Printf("Registry Backend: %s\n", c.RegistryBackend)
		fmt.Printf("Registry Path: %s\n", c.RegistryPath)
		fmt.Printf("Consul Address: %s\n", c.ConsulAddress)
		fmt.Printf("Consul Prefix: %s\n", c.ConsulPrefix)
		fmt.Printf("Store Timeout: %s\n", c.StoreTimeout)
		fmt.Printf("Listen Address: %s\n", c.ListenAddress)
		fmt.Printf("Provider Bundle ID: %s\n", c.ProviderBundleID)
		fmt.Printf("Server Address: %s\n", c.ServerAddress)
		fmt.Printf("Watch Debounce: %s\n", c.WatchDebounce)
	},
}

// configSetCmd is the command to change one setting
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a setting",
	Long: `Set one Specht setting.
Examples:
  specht config set config_dir ~/tunnels
  specht config set registry_backend memory
  specht config set store_timeout 5s
  specht config set log_level debug`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]

		if err := Container.ConfigService.Set(Container.Config, key, value); err != nil {
			fail("%v (valid keys: %s)", err, strings.Join(Container.ConfigService.Keys(), ", "))
		}
		if err := Container.ConfigService.SaveConfig(Container.Config, ConfigPath); err != nil {
			fail("Failed to save settings: %v", err)
		}

		fmt.Printf("Setting %s successfully changed to %s\n", key, value)
	},
}

// configPathCmd prints the settings file location
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		path := ConfigPath
		if path == "" {
			var err error
			if path, err = Container.ConfigRepository.GetDefaultPath(); err != nil {
				fail("%v", err)
			}
		}
		fmt.Println(path)
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
