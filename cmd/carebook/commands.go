package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/export"
	"github.com/MarcoPoloResearchLab/carebook/internal/importer"
)

const defaultTokenTTL = 24 * time.Hour

func newImportCommand() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import health events from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), filePath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "YAML file with an events list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, filePath string, out io.Writer) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	runtime, err := newAppRuntime(ctx)
	if err != nil {
		return err
	}
	defer runtime.Close()

	list, err := importer.LoadYAML(file, runtime.coordinator.UserID(), events.NewUUIDProvider())
	if err != nil {
		return err
	}
	stored, err := importer.Apply(ctx, runtime.coordinator, list)
	runtime.logger.Info("import finished",
		zap.String("file", filePath),
		zap.Int("stored", stored),
		zap.Int("total", len(list)))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported %d events\n", stored)
	return err
}

func newExportCommand() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the user's health events as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), outputPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output .ics path (stdout when empty)")
	return cmd
}

func runExport(ctx context.Context, outputPath string, stdout io.Writer) error {
	runtime, err := newAppRuntime(ctx)
	if err != nil {
		return err
	}
	defer runtime.Close()

	list, err := runtime.store.ListAll(ctx, runtime.coordinator.UserID())
	if err != nil {
		return err
	}

	out := stdout
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	result, err := export.WriteICS(out, list, export.Options{Now: time.Now(), Logger: runtime.logger})
	if err != nil {
		return err
	}
	runtime.logger.Info("export finished",
		zap.Int("written", result.Written),
		zap.Strings("skipped", result.Skipped))
	return nil
}

func newTokenCommand() *cobra.Command {
	var displayName string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for the configured user",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("session.signing_secret")
			userID := viper.GetString("user.id")
			if userID == "" {
				return fmt.Errorf("user.id is required to issue a token")
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(secret),
				Issuer:        viper.GetString("session.issuer"),
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.IssueSessionToken(cmd.Context(), userID, displayName)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires in %ds\n", token, expiresIn)
			return err
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "Display name embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "Token lifetime")
	return cmd
}
