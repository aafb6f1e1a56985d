package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdbxgo/kdbxvault/model"
)

var infoKeyFilePath string

var dbInfoCmd = &cobra.Command{
	Use:   "db-info <path>",
	Short: "Print a KDBX database's structure and parameters",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBInfo,
}

func init() {
	dbInfoCmd.Flags().StringVar(&infoKeyFilePath, "key-file", "", "Path to a key file")
	rootCmd.AddCommand(dbInfoCmd)
}

func runDBInfo(cmd *cobra.Command, args []string) error {
	if err := rootCmdLoadConfig(cmd); err != nil {
		return err
	}
	path := args[0]

	password, err := promptPassword("Enter password: ", false)
	if err != nil {
		return err
	}
	ck, err := newCompositeKey(password, infoKeyFilePath)
	if err != nil {
		return err
	}

	opened, err := openVault(path, ck)
	if err != nil {
		return err
	}

	groups, entries := countTree(opened.payload.Root)

	fmt.Printf("Path:          %s\n", path)
	fmt.Printf("Format:        KDBX %d.%d\n", opened.container.Version.Major(), opened.container.Version.Minor())
	fmt.Printf("Cipher:        %s\n", opened.container.Outer.CipherID)
	fmt.Printf("Compression:   %s\n", compressionName(opened.container.Outer.Compression))
	fmt.Printf("KDF:           %s\n", kdfDescription(opened.container))
	fmt.Printf("Groups:        %d\n", groups)
	fmt.Printf("Entries:       %d\n", entries)
	fmt.Printf("Deleted items: %d\n", len(opened.payload.DeletedObjects))
	fmt.Printf("Binaries:      %d\n", len(opened.payload.Binaries))
	return nil
}

func countTree(root *model.Group) (groups, entries int) {
	if root == nil {
		return 0, 0
	}
	root.Walk(func(g *model.Group) {
		groups++
	})
	entries = len(root.AllEntries())
	return groups, entries
}

func compressionName(c model.Compression) string {
	if c == model.CompressionGzip {
		return "gzip"
	}
	return "none"
}
