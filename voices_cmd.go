package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/live-announcer/internal/speech/engines"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the configured speech engine",
	Long:    paragraph(fmt.Sprintf("\n%s the voices offered by the configured speech engine. Pass an id or name with --voice to pick one.", keyword("List"))),
	Example: paragraph("announcer voices\nannouncer voices --engine gtts"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := setupLog(false, viper.GetBool("debug"))
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		engine, err := engines.New(ctx, engines.Config{
			Engine: cfg.Speech.Engine,
			Piper:  cfg.Speech.Piper,
			GTTS:   cfg.Speech.GTTS,
			Polly:  cfg.Speech.Polly,
		}, engines.Deps{Logger: log.Default()})
		if err != nil {
			return err
		}
		voices, err := engine.Voices(ctx)
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}
		if len(voices) == 0 {
			fmt.Println("No voices reported by", engine.Name())
			return nil
		}

		for i, v := range voices {
			marker := "  "
			if i == 0 {
				marker = keyword("* ")
			}
			extra := strings.TrimSpace(strings.Join([]string{v.Gender, v.Language}, " "))
			fmt.Printf("%s%s %s %s\n", marker, keyword(v.Name), faint(v.ID), extra)
		}
		return nil
	},
}
