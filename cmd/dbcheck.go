package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kdbxgo/kdbxvault/kdf"
)

var checkKeyFilePath string

var dbCheckCmd = &cobra.Command{
	Use:   "db-check <path>",
	Short: "Load, re-save, and reload a database to check round-trip fidelity",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBCheck,
}

func init() {
	dbCheckCmd.Flags().StringVar(&checkKeyFilePath, "key-file", "", "Path to a key file")
	rootCmd.AddCommand(dbCheckCmd)
}

// runDBCheck exercises round-trip fidelity against a real file:
// Load, Save to a scratch file, Load again,
// and compare the group and entry counts of the two decoded trees.
func runDBCheck(cmd *cobra.Command, args []string) error {
	if err := rootCmdLoadConfig(cmd); err != nil {
		return err
	}
	path := args[0]

	password, err := promptPassword("Enter password: ", false)
	if err != nil {
		return err
	}
	ck, err := newCompositeKey(password, checkKeyFilePath)
	if err != nil {
		return err
	}

	opened, err := openVault(path, ck)
	if err != nil {
		return err
	}

	kdfInstance, err := resolveOpenedKDF(opened)
	if err != nil {
		return fmt.Errorf("resolve KDF: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".kdbxvault-check-*.kdbx")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	saveP := saveParamsFromContainer(opened.container, ck, kdfInstance, opened.container.Binaries())
	if err := saveVault(tmpPath, saveP, opened.payload); err != nil {
		return fmt.Errorf("re-save: %w", err)
	}

	reopened, err := openVault(tmpPath, ck)
	if err != nil {
		return fmt.Errorf("reload re-saved file: %w", err)
	}

	groupsA, entriesA := countTree(opened.payload.Root)
	groupsB, entriesB := countTree(reopened.payload.Root)
	if groupsA != groupsB || entriesA != entriesB {
		return fmt.Errorf("round trip mismatch: %d groups/%d entries before, %d groups/%d entries after", groupsA, entriesA, groupsB, entriesB)
	}

	fmt.Printf("OK: %s round-trips (%d groups, %d entries)\n", path, groupsA, entriesA)
	return nil
}

// resolveOpenedKDF rebuilds the KDF instance a loaded container used,
// the same resolution kdbx.Load performs internally but exposed here
// so db-check can re-save with it.
func resolveOpenedKDF(o *openedDatabase) (kdf.KDF, error) {
	if !o.container.Version.IsV4() {
		return kdf.NewAESKDF3(o.container.Outer.TransformSeed, o.container.Outer.TransformRounds), nil
	}
	return kdf.FromVariantMap(o.container.Outer.KdfParameters)
}
