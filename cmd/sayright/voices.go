package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sayright/sayright/internal/app"
	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/pkg/audio"
)

func newVoicesCmd(opts *rootOptions) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the configured TTS provider",
		Long: `List the voices offered by the TTS provider in the configuration, or by
the provider named with --provider. Use a voice ID as feedback.voice.id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			entry := cfg.Providers.TTS
			if provider != "" {
				entry = config.ProviderEntry{Name: provider}
				for _, fb := range cfg.Providers.TTSFallbacks {
					if fb.Name == provider {
						entry = fb
					}
				}
			}
			if entry.Name == "" {
				return errors.New("no tts provider configured")
			}

			reg := config.NewRegistry()
			app.RegisterBuiltinProviders(reg, app.ProviderDeps{
				Playback: audio.Format{SampleRate: cfg.Audio.PlaybackSampleRate, Channels: 1},
			})
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return fmt.Errorf("create tts provider %q: %w", entry.Name, err)
			}
			voices, err := p.ListVoices(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDETAILS")
			for _, v := range voices {
				var details []string
				for _, k := range slices.Sorted(maps.Keys(v.Metadata)) {
					details = append(details, k+"="+v.Metadata[k])
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, strings.Join(details, " "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(voices) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s reports no voices\n", entry.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "TTS provider to query instead of providers.tts")
	return cmd
}
