package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kdbxgo/kdbxvault/kdbx"
	"github.com/kdbxgo/kdbxvault/kdbxxml"
	"github.com/kdbxgo/kdbxvault/model"
)

var (
	createSetPassword bool
	createKeyFilePath string
)

var dbCreateCmd = &cobra.Command{
	Use:   "db-create <path>",
	Short: "Create a new KDBX database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBCreate,
}

func init() {
	dbCreateCmd.Flags().BoolVar(&createSetPassword, "set-password", false, "Prompt for a master password")
	dbCreateCmd.Flags().StringVar(&createKeyFilePath, "set-key-file", "", "Path to a key file; generated if it doesn't exist")
	dbCreateCmd.Flags().Int("decryption-time", 1000, "Target KDF decryption time in milliseconds")
	_ = viper.BindPFlag("decryption_time_ms", dbCreateCmd.Flags().Lookup("decryption-time"))
	rootCmd.AddCommand(dbCreateCmd)
}

// runDBCreate implements db-create: refuse to overwrite an existing
// file, gather the requested factors, pick and benchmark a KDF, and
// write a fresh empty database.
func runDBCreate(cmd *cobra.Command, args []string) error {
	if err := rootCmdLoadConfig(cmd); err != nil {
		return err
	}
	path := args[0]

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	if !createSetPassword && createKeyFilePath == "" {
		return fmt.Errorf("db-create requires --set-password and/or --set-key-file")
	}

	var password string
	if createSetPassword {
		var err error
		password, err = promptPassword("Enter password to encrypt database: ", true)
		if err != nil {
			return err
		}
	}

	if createKeyFilePath != "" {
		if _, err := os.Stat(createKeyFilePath); os.IsNotExist(err) {
			if err := generateKeyFile(createKeyFilePath); err != nil {
				return fmt.Errorf("generate key file %s: %w", createKeyFilePath, err)
			}
			fmt.Fprintf(os.Stderr, "Generated key file at %s\n", createKeyFilePath)
		} else if err != nil {
			return err
		}
	}

	ck, err := newCompositeKey(password, createKeyFilePath)
	if err != nil {
		return err
	}

	targetMS, _ := cmd.Flags().GetInt("decryption-time")
	if kdfCfg.DecryptionTimeMS != 0 {
		targetMS = kdfCfg.DecryptionTimeMS
	}
	if err := (KDFConfig{DecryptionTimeMS: targetMS}).Validate(); err != nil {
		return err
	}

	version := model.FormatKDBX4
	kdfInstance, err := defaultKDFForVersion(version, targetMS)
	if err != nil {
		return fmt.Errorf("benchmark KDF: %w", err)
	}
	cipherID, innerStreamID := defaultCipherAndInnerStream(version)

	db := model.NewDatabase(nameFromPath(path), version, timeNow())
	db.CipherID = cipherID
	db.Compression = model.CompressionGzip
	db.KDF = model.KDFParams{
		UUID:        kdfInstance.UUID(),
		Seed:        kdfInstance.Params().Seed,
		Parallelism: kdfInstance.Params().Parallelism,
		Memory:      kdfInstance.Params().Memory,
		Iterations:  kdfInstance.Params().Iterations,
		Version:     kdfInstance.Params().Version,
	}

	payload := &kdbxxml.Payload{
		Metadata: db.Metadata,
		Root:     db.Root,
	}

	saveP := kdbx.SaveParams{
		Version:       version,
		CipherID:      cipherID,
		Compression:   db.Compression,
		KDF:           kdfInstance,
		InnerStreamID: innerStreamID,
		CompositeKey:  ck,
	}
	if err := saveVault(path, saveP, payload); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	fmt.Fprintf(os.Stderr, "Created %s\n", path)
	return nil
}

func nameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".kdbx")
}
