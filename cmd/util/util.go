package util

import (
	"github.com/ValentinKolb/feedstore/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "feedstore"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the store configuration flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	defaults := common.DefaultStoreConfig()

	key := "name"
	cmd.PersistentFlags().String(key, defaults.Name, WrapString("Name of the store, used in log output"))

	key = "max-concurrent-reads"
	cmd.PersistentFlags().Int(key, 0, WrapString("How many retrievals may run in parallel (0 = number of CPUs)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and initializes viper to read environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() *common.StoreConfig {
	return &common.StoreConfig{
		Name:               viper.GetString("name"),
		MaxConcurrentReads: viper.GetInt("max-concurrent-reads"),
		LogLevel:           viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags (including inherited persistent flags) to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.Flags())
}
