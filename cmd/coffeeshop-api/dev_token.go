package main

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultDevKeyFile  = "coffeeshop-dev-key.pem"
	defaultDevJWKSFile = "coffeeshop-dev-jwks.json"
	defaultDevIssuer   = "https://coffeeshop.local/"
	defaultDevAudience = "drinks"
)

type devTokenOptions struct {
	keyFile     string
	subject     string
	permissions []string
	ttl         time.Duration
}

// newDevTokenCommand prints a locally signed token whose key set is written
// to auth.jwks_file, so the server can run without an identity provider.
func newDevTokenCommand() *cobra.Command {
	options := devTokenOptions{}
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Sign a development token and write the matching JWKS document",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := issueDevToken(options)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&options.keyFile, "key-file", defaultDevKeyFile, "PEM encoded RSA signing key (created when missing)")
	cmd.Flags().StringVar(&options.subject, "subject", "dev|barista", "Token subject")
	cmd.Flags().StringSliceVar(&options.permissions, "permissions", []string{server.PermissionGetDrinksDetail}, "Permissions granted by the token")
	cmd.Flags().DurationVar(&options.ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}

func issueDevToken(options devTokenOptions) (string, error) {
	privateKey, err := loadOrCreateKey(options.keyFile)
	if err != nil {
		return "", err
	}

	issuer := viper.GetString("auth.issuer")
	if issuer == "" {
		issuer = defaultDevIssuer
	}
	audience := viper.GetString("auth.audience")
	if audience == "" {
		audience = defaultDevAudience
	}

	signer, err := auth.NewSigner(auth.SignerConfig{
		PrivateKey: privateKey,
		Issuer:     issuer,
		Audience:   audience,
		TokenTTL:   options.ttl,
	})
	if err != nil {
		return "", err
	}

	jwksFile := viper.GetString("auth.jwks_file")
	if jwksFile == "" {
		jwksFile = defaultDevJWKSFile
	}
	document, err := json.MarshalIndent(signer.KeySet(), "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(jwksFile, document, 0o644); err != nil {
		return "", fmt.Errorf("write jwks file: %w", err)
	}

	return signer.Issue(options.subject, options.permissions)
}

func loadOrCreateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return auth.DecodePrivateKey(data)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	privateKey, err := auth.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, auth.EncodePrivateKey(privateKey), 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return privateKey, nil
}
