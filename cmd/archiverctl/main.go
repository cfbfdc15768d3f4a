package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/s0up4200/archiverctl/internal/api"
	"github.com/s0up4200/archiverctl/internal/archiver"
	"github.com/s0up4200/archiverctl/internal/config"
	"github.com/s0up4200/archiverctl/internal/registry"
	"github.com/s0up4200/archiverctl/internal/updater"
	"github.com/s0up4200/archiverctl/pkg/version"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "archiverctl",
		Short: "archiverctl allocates archival containers and fetches the torrents assigned to them",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Create a new configuration file",
		RunE:  runSetup,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the configured containers",
		RunE:  runList,
	}

	createCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new container",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}

	fetchCmd = &cobra.Command{
		Use:   "fetch <name|all>",
		Short: "Fetch a new torrent for a container, or for all containers",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
		Example: `  # Fetch a torrent for one container
  archiverctl fetch MyContainer

  # Fetch for every container, paced by FetchSleep
  archiverctl fetch all`,
	}

	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update this client if the server has a newer script",
		RunE:  runUpdate,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version information and check for updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return version.CheckForUpdates("s0up4200", "archiverctl")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.ptp", "path to a configuration file to read/write")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	setupGroup := &cobra.Group{
		ID:    "setup",
		Title: "Configuration Commands:",
	}
	operationGroup := &cobra.Group{
		ID:    "operation",
		Title: "Archival Commands:",
	}
	rootCmd.AddGroup(setupGroup, operationGroup)

	setupCmd.GroupID = "setup"
	listCmd.GroupID = "setup"
	createCmd.GroupID = "setup"
	fetchCmd.GroupID = "operation"
	updateCmd.GroupID = "operation"

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

// confirm asks a yes/no question on the terminal. This is the decision
// callback injected into the core; nothing below the CLI reads stdin.
func confirm(question string) bool {
	fmt.Printf("%s (y/N)? ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func prompt(label string) (string, error) {
	fmt.Printf("%s: ", label)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func runSetup(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err == nil {
		if !confirm(fmt.Sprintf("Overwrite %s", cfgFile)) {
			return nil
		}
	}

	user, err := prompt("ApiUser")
	if err != nil {
		return err
	}
	key, err := prompt("ApiKey ")
	if err != nil {
		return err
	}
	if !config.ValidCredentials(user, key) {
		return fmt.Errorf("invalid credentials, recheck your account settings")
	}

	cfg := config.DefaultConfig()
	cfg.ApiUser = user
	cfg.ApiKey = key

	if err := config.Save(cfgFile, cfg); err != nil {
		return err
	}
	log.Info().Str("path", cfgFile).Msg("new config written")

	if !confirm("Create a new container now") {
		return nil
	}
	name, err := prompt("Name")
	if err != nil {
		return err
	}
	if err := registry.Create(cfg, name); err != nil {
		return err
	}
	if err := config.Save(cfgFile, cfg); err != nil {
		return err
	}
	log.Info().Str("container", name).Msg("created container")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Println("Containers:")
	for _, entry := range registry.List(cfg) {
		target := entry.Container.WatchDirectory
		if entry.Container.Client != "" {
			target = "client " + entry.Container.Client
		}
		fmt.Printf("\t%s (%s): %s\n", entry.Name, entry.Container.Size, target)
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := registry.Create(cfg, args[0]); err != nil {
		return err
	}
	if err := config.Save(cfgFile, cfg); err != nil {
		return err
	}

	log.Info().Str("container", args[0]).Msg("created container")
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	a := archiver.New(cfg, api.NewClient(cfg), confirm, version.Script)
	if err := a.Fetch(args[0]); err != nil {
		// IDs assigned before the failure are still worth keeping
		if saveErr := config.Save(cfgFile, cfg); saveErr != nil {
			log.Error().Err(saveErr).Msg("failed to save config")
		}
		return err
	}

	return config.Save(cfgFile, cfg)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	path, err := updater.Update(api.NewClient(cfg), confirm, exe, version.Script)
	if err != nil {
		return err
	}
	if path != "" {
		log.Info().Str("path", path).Msg("updated")
	}
	return nil
}
