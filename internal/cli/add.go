package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/workmait/digestd/internal/event"
)

var addCmd = &cobra.Command{
	Use:   "add <file-path>...",
	Short: "Digest files into one or more strategies",
	Long: `Publish an add-nodes event for files already present in the digestd
file store. Paths are interpreted relative to the file store root.`,
	Example: `  digestctl add docs/report.pdf --namespace acme --strategy standard
  digestctl add docs/q3.csv --file-type excel --strategy tables --strategy standard`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, _ := cmd.Flags().GetString("namespace")
		strategies, _ := cmd.Flags().GetStringArray("strategy")
		fileTypeFlag, _ := cmd.Flags().GetString("file-type")
		metadataJSON, _ := cmd.Flags().GetString("metadata")

		var metadata map[string]string
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return fmt.Errorf("--metadata must be a JSON object of strings: %w", err)
			}
		}

		files := make([]event.FileRef, 0, len(args))
		for _, path := range args {
			ft, err := fileTypeFor(path, fileTypeFlag)
			if err != nil {
				return err
			}
			files = append(files, event.FileRef{
				FileID:   uuid.NewString(),
				FileType: ft,
				FilePath: path,
			})
		}

		req := event.AddNodesRequest{
			Namespace:  namespace,
			Strategies: strategies,
			Files:      files,
			Metadata:   metadata,
		}
		if err := req.Validate(); err != nil {
			return err
		}
		fields, err := req.Fields()
		if err != nil {
			return err
		}

		b, closeBus, err := openBus(cmd)
		if err != nil {
			return err
		}
		defer closeBus()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		entryID, err := b.Publish(ctx, event.TypeAddNodes, fields)
		if err != nil {
			return fmt.Errorf("publish add-nodes event: %w", err)
		}

		cmd.Printf("published %s entry %s (%d files)\n", event.TypeAddNodes, entryID, len(files))
		for _, f := range files {
			cmd.Printf("  %s  %s\n", f.FileID, f.FilePath)
		}
		return nil
	},
}

// fileTypeFor resolves the declared or extension-inferred file type.
func fileTypeFor(path, flag string) (event.FileType, error) {
	if flag != "" {
		return event.ParseFileType(flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return event.FileTypePDF, nil
	case ".xls", ".xlsx", ".csv":
		return event.FileTypeExcel, nil
	case ".doc", ".docx", ".txt", ".md":
		return event.FileTypeDoc, nil
	case ".ppt", ".pptx":
		return event.FileTypePPT, nil
	default:
		return "", fmt.Errorf("cannot infer file type of %q, pass --file-type", path)
	}
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringP("namespace", "n", "default", "target namespace")
	addCmd.Flags().StringArrayP("strategy", "s", []string{"standard"}, "strategy to digest with (repeatable)")
	addCmd.Flags().String("file-type", "", "file type: pdf, excel, doc, ppt (inferred from extension when empty)")
	addCmd.Flags().String("metadata", "", "JSON object of metadata applied to every file")
}
