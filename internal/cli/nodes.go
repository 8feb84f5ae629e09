package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workmait/digestd/internal/event"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <file-id>...",
	Short:   "Delete files' nodes from a namespace",
	Example: `  digestctl delete 4f1c... --namespace acme`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, _ := cmd.Flags().GetString("namespace")
		req := event.DeleteNodesRequest{Namespace: namespace, FileIDs: args}
		return publish(cmd, event.TypeDeleteNodes, &req)
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <file-id>...",
	Short:   "Move files' nodes between namespaces",
	Example: `  digestctl move 4f1c... --from acme --to archive`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("from")
		target, _ := cmd.Flags().GetString("to")
		if source == "" || target == "" {
			return fmt.Errorf("--from and --to are required")
		}
		req := event.MoveNodesRequest{
			SourceNamespace: source,
			TargetNamespace: target,
			FileIDs:         args,
		}
		return publish(cmd, event.TypeMoveNodes, &req)
	},
}

var dropStoreCmd = &cobra.Command{
	Use:   "drop-store <namespace>",
	Short: "Destroy every store under a namespace",
	Long: `Publish a delete-store event. Every pipeline-type store derived from
the namespace is destroyed. This cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("refusing to drop namespace %q without --yes", args[0])
		}
		req := event.DeleteStoreRequest{Namespace: args[0]}
		return publish(cmd, event.TypeDeleteStore, &req)
	},
}

type fielder interface {
	Fields() (map[string]any, error)
}

func publish(cmd *cobra.Command, eventType string, req fielder) error {
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
	entryID, err := b.Publish(ctx, eventType, fields)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	cmd.Printf("published %s entry %s\n", eventType, entryID)
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd, moveCmd, dropStoreCmd)

	deleteCmd.Flags().StringP("namespace", "n", "default", "namespace to delete from")
	moveCmd.Flags().String("from", "", "source namespace")
	moveCmd.Flags().String("to", "", "target namespace")
	dropStoreCmd.Flags().BoolP("yes", "y", false, "confirm the destructive drop")
}
