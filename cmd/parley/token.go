package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/parley/platform/webview"
)

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a webview client token signed with webview.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if cfg.Webview.JWTSecret == "" {
				return errors.New("webview.jwt_secret is not set (PARLEY_WEBVIEW_JWT_SECRET)")
			}
			tok, err := webview.SignToken([]byte(cfg.Webview.JWTSecret), cfg.Webview.Issuer, subject, scopes, ttl)
			if err != nil {
				return err
			}
			cmd.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "granted scopes (default read,write)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
