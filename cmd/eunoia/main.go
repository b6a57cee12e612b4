package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/internal/version"
	"github.com/Try3D/Eunoia/server"
	"github.com/Try3D/Eunoia/store"
	"github.com/Try3D/Eunoia/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "eunoia",
		Short: `Turn a photo of what you have lying around into a DIY project.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide their environment through EnvironmentFile.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile, err := loadProfile()
			if err != nil {
				panic(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to open store", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// SIGTERM is what process managers send to ask for a graceful stop.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					slog.Error("failed to start server", "error", err)
					cancel()
				}
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8000)
	viper.SetDefault("corpus-source", profile.CorpusSourceFile)
	viper.SetDefault("top-n", 3)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8000, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("corpus", "", "path of the embedded project corpus JSON file")
	rootCmd.PersistentFlags().String("corpus-source", profile.CorpusSourceFile, "where similar projects are read from (file, db, index)")
	rootCmd.PersistentFlags().Int("top-n", 3, "number of similar projects returned by default")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "corpus", "corpus-source", "top-n"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("eunoia")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(seedCmd, embedCmd, matchCmd)
}

// loadProfile builds the profile from flags, EUNOIA_* variables and defaults.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:         viper.GetString("mode"),
		Addr:         viper.GetString("addr"),
		Port:         viper.GetInt("port"),
		Data:         viper.GetString("data"),
		Driver:       viper.GetString("driver"),
		DSN:          viper.GetString("dsn"),
		CorpusPath:   viper.GetString("corpus"),
		CorpusSource: viper.GetString("corpus-source"),
		TopN:         viper.GetInt("top-n"),
		Version:      version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		printDatabaseError(err, p)
		return nil, err
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, err
	}
	return storeInstance, nil
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Eunoia %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Corpus: %s (%s)\n", profile.CorpusPath, profile.CorpusSource)
	fmt.Printf("Mode: %s\n", profile.Mode)

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
		fmt.Printf("Access Eunoia at: http://localhost:%d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
		fmt.Printf("Access Eunoia at: http://%s:%d\n", profile.Addr, profile.Port)
	}
	if !profile.AIEnabled {
		fmt.Println("AI features are off: set EUNOIA_AI_LLM_API_KEY to enable photo analysis")
	}
	fmt.Println("\nHappy making!")
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError prints a hint for the most common connection failures.
func printDatabaseError(err error, profile *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "PostgreSQL is not reachable.")
		fmt.Fprintln(os.Stderr, "Start it, or use SQLite for development: --driver=sqlite --data=./data")
	case strings.Contains(errMsg, "SSL is not enabled") || strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "PostgreSQL SSL configuration mismatch, add ?sslmode=disable to the DSN.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "PostgreSQL authentication failed, check the credentials in the DSN.")
	case strings.Contains(errMsg, "dsn required"):
		fmt.Fprintf(os.Stderr, "The %s driver needs --dsn or EUNOIA_DSN.\n", profile.Driver)
	default:
		fmt.Fprintln(os.Stderr, "Error:", errMsg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
