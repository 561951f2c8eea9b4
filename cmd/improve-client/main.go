// main package for the improve-client command-line tool
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagConfig     = "config"
	flagEnvFile    = "env-file"
	flagProvider   = "provider"
	flagStyle      = "style"
	flagSpeak      = "speak"
	flagOutput     = "output"
	flagVoice      = "voice"
	flagStability  = "stability"
	flagSimilarity = "similarity-boost"
	flagCurrent    = "current"
)

// Flag descriptions.
const (
	flagConfigDesc     = "Path to a TOML configuration file"
	flagEnvFileDesc    = "File with API keys in KEY=value form"
	flagProviderDesc   = "Provider to use: anthropic or openai"
	flagStyleDesc      = "Writing style, see the styles command"
	flagSpeakDesc      = "Also synthesize the improved text"
	flagOutputDesc     = "Output file for synthesized audio (.mp3)"
	flagVoiceDesc      = "ElevenLabs voice id"
	flagStabilityDesc  = "Voice stability between 0 and 1"
	flagSimilarityDesc = "Voice similarity boost between 0 and 1"
	flagCurrentDesc    = "Version to compare against (defaults to update.current_version)"
)

const (
	defaultEnvFile    = ".env"
	defaultOutputFile = "speech.mp3"
	logFileName       = "improve-client.log"
)

type rootFlags struct {
	config  string
	envFile string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "improve-client",
		Short: "Rewrite text with an AI provider and read it aloud",
		Long: `improve-client rewrites text in one of several writing styles using
Anthropic or OpenAI, and can synthesize the result with ElevenLabs.

API keys are read from ANTHROPIC_API_KEY, OPENAI_API_KEY and
ELEVENLABS_API_KEY, or from the file given with --env-file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	rootCmd.PersistentFlags().StringVar(&flags.envFile, flagEnvFile, defaultEnvFile, flagEnvFileDesc)

	rootCmd.AddCommand(newImproveCmd(flags))
	rootCmd.AddCommand(newSpeakCmd(flags))
	rootCmd.AddCommand(newVoicesCmd(flags))
	rootCmd.AddCommand(newValidateKeyCmd(flags))
	rootCmd.AddCommand(newStylesCmd())
	rootCmd.AddCommand(newCheckUpdateCmd(flags))

	return rootCmd
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
