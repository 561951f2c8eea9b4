package main

import (
	"fmt"

	"github.com/book-expert/text-improver/internal/config"
	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/session"
	"github.com/book-expert/text-improver/internal/update"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newImproveCmd(flags *rootFlags) *cobra.Command {
	var (
		providerName string
		styleName    string
		speak        bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "improve [text...]",
		Short: "Rewrite text in a writing style",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if providerName != "" {
				selected, parseErr := core.ParseProvider(providerName)
				if parseErr != nil {
					return parseErr
				}

				a.session.SetProvider(selected)
			}

			if styleName != "" {
				style, parseErr := core.ParseStyle(styleName)
				if parseErr != nil {
					return parseErr
				}

				a.session.SetStyle(style)
			}

			a.session.SetInputText(text)

			err = a.session.Improve(cmd.Context())
			if err != nil {
				return describe(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), a.session.State().OutputText)

			if !speak {
				return nil
			}

			a.session.SetSpeakSource(session.SpeakOutput)

			audio, err := a.session.Speak(cmd.Context())
			if err != nil {
				return describe(err)
			}

			return saveAudio(cmd.Context(), cmd.ErrOrStderr(), audio, output)
		},
	}

	cmd.Flags().StringVar(&providerName, flagProvider, "", flagProviderDesc)
	cmd.Flags().StringVar(&styleName, flagStyle, "", flagStyleDesc)
	cmd.Flags().BoolVar(&speak, flagSpeak, false, flagSpeakDesc)
	cmd.Flags().StringVar(&output, flagOutput, defaultOutputFile, flagOutputDesc)

	return cmd
}

func newSpeakCmd(flags *rootFlags) *cobra.Command {
	var (
		output     string
		voiceID    string
		stability  float64
		similarity float64
	)

	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text aloud with ElevenLabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			settings := a.session.State().VoiceSettings

			if cmd.Flags().Changed(flagVoice) {
				settings.VoiceID = voiceID
			}

			if cmd.Flags().Changed(flagStability) {
				settings.Stability = stability
			}

			if cmd.Flags().Changed(flagSimilarity) {
				settings.SimilarityBoost = similarity
			}

			err = a.session.SetVoiceSettings(settings)
			if err != nil {
				return err
			}

			a.session.SetInputText(text)
			a.session.SetSpeakSource(session.SpeakInput)

			audio, err := a.session.Speak(cmd.Context())
			if err != nil {
				return describe(err)
			}

			return saveAudio(cmd.Context(), cmd.OutOrStdout(), audio, output)
		},
	}

	cmd.Flags().StringVar(&output, flagOutput, defaultOutputFile, flagOutputDesc)
	cmd.Flags().StringVar(&voiceID, flagVoice, "", flagVoiceDesc)
	cmd.Flags().Float64Var(&stability, flagStability, core.DefaultStability, flagStabilityDesc)
	cmd.Flags().Float64Var(&similarity, flagSimilarity, core.DefaultSimilarityBoost, flagSimilarityDesc)

	return cmd
}

func newVoicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices available to the ElevenLabs key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			voices, err := a.session.ListVoices(cmd.Context())
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()

			if len(voices) == 0 {
				printStatus(out, "!", "No voices available", color.FgYellow)

				return nil
			}

			for _, voice := range voices {
				fmt.Fprintf(out, "%-24s %-20s %s\n", voice.ID, voice.DisplayName, voice.Category)
			}

			return nil
		},
	}
}

func newValidateKeyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key [key]",
		Short: "Check an ElevenLabs API key",
		Long:  "Check an ElevenLabs API key. Without an argument the configured " + config.EnvElevenLabsKey + " is checked.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			key := a.session.Credentials().ElevenLabs.Key()
			if len(args) == 1 {
				key = args[0]
			}

			err = a.session.ValidateVoiceKey(cmd.Context(), key)
			if err != nil {
				printStatus(cmd.OutOrStdout(), "✗", "Key rejected", color.FgRed)

				return describe(err)
			}

			printStatus(cmd.OutOrStdout(), "✓", "Key is valid", color.FgGreen)

			return nil
		},
	}
}

func newStylesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the writing styles",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, style := range core.AllStyles() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", style.ID(), style)
			}
		},
	}
}

func newCheckUpdateCmd(flags *rootFlags) *cobra.Command {
	var current string

	cmd := &cobra.Command{
		Use:   "check-update",
		Short: "Check GitHub for a newer release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(flags.config)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if current == "" {
				current = cfg.Update.CurrentVersion
			}

			checker := update.NewChecker(cfg.Update.APIURL, cfg.Update.Owner, cfg.Update.Repo, cfg.Update.AssetSuffix, nil)

			result, err := checker.Check(cmd.Context(), current)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if !result.Available {
				printStatus(out, "✓", fmt.Sprintf("Up to date (%s)", current), color.FgGreen)

				return nil
			}

			printStatus(out, "↑", fmt.Sprintf("Version %s is available (running %s)", result.LatestVersion, current), color.FgYellow)

			if result.DownloadURL != "" {
				fmt.Fprintf(out, "  %s\n", result.DownloadURL)
			}

			if result.ReleaseNotes != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, result.ReleaseNotes)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&current, flagCurrent, "", flagCurrentDesc)

	return cmd
}
