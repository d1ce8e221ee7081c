package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/creastat/krishi/voice"
)

var (
	voiceName     string
	voiceLanguage string
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Realtime voice session commands",
}

var voiceSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create a realtime voice session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newVoiceClient()
		if err != nil {
			return err
		}

		req := voice.SessionRequest{Voice: voiceName, Language: voiceLanguage}
		if profiles, err := newProfileService(); err == nil {
			defer profiles.Close()
			if u := profiles.Current(); u != nil {
				req.UserID = &u.ID
				if req.Language == "" {
					req.Language = u.Language
				}
				req.FarmerContext = map[string]any{
					"state":     u.State,
					"district":  u.District,
					"land_area": u.LandArea,
				}
			}
		}

		s, err := client.CreateSession(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

var voiceListCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voices",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newVoiceClient()
		if err != nil {
			return err
		}
		v, err := client.AvailableVoices(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

func init() {
	voiceSessionCmd.Flags().StringVar(&voiceName, "voice", voice.DefaultVoice, "voice name")
	voiceSessionCmd.Flags().StringVar(&voiceLanguage, "language", "", "session language (defaults to the profile language)")
	voiceCmd.AddCommand(voiceSessionCmd, voiceListCmd)
}

func newVoiceClient() (*voice.Client, error) {
	return voice.New(voice.Config{
		BaseURL: cfg.Backend.HTTPURL,
		Timeout: cfg.Backend.RequestTimeout,
	}, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
