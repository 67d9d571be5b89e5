package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/pkg/api"
)

// NewListCommand creates the list command: shows the cached state of a list.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var (
		listID int64
		only   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the local copy of a packing list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var filter models.EntityType
			if only != "" {
				t, err := models.ParseEntityType(only)
				if err != nil || t == models.EntityList {
					return fmt.Errorf("unknown entity type %q", only)
				}
				filter = t
			}

			a, err := openApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			packed, total, err := a.data.Progress(ctx, listID)
			if err != nil {
				return err
			}
			a.io.Printf("List %d: %d/%d packed", listID, packed, total)
			if n := a.engine.PendingCount(ctx, listID); n > 0 {
				a.io.Printf(", %d change(s) not synced", n)
			}
			a.io.Println()

			show := func(t models.EntityType) bool { return filter == "" || filter == t }
			w := tabwriter.NewWriter(a.io, 0, 4, 2, ' ', 0)

			if show(models.EntityCategory) {
				categories, err := a.data.Categories(ctx, listID)
				if err != nil {
					return err
				}
				section(w, "CATEGORIES", "ID\tNAME")
				for _, c := range categories {
					_, _ = fmt.Fprintf(w, "%d\t%s\n", c.ID, c.Name)
				}
			}
			if show(models.EntityBag) {
				bags, err := a.data.Bags(ctx, listID)
				if err != nil {
					return err
				}
				section(w, "BAGS", "ID\tNAME\tCOLOR")
				for _, b := range bags {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", b.ID, b.Name, b.Color)
				}
			}
			if show(models.EntityTraveler) {
				travelers, err := a.data.Travelers(ctx, listID)
				if err != nil {
					return err
				}
				section(w, "TRAVELERS", "ID\tNAME")
				for _, t := range travelers {
					_, _ = fmt.Fprintf(w, "%d\t%s\n", t.ID, t.Name)
				}
			}
			if show(models.EntityItem) {
				items, err := a.data.Items(ctx, listID)
				if err != nil {
					return err
				}
				section(w, "ITEMS", "ID\tNAME\tQTY\tPACKED\tCATEGORY\tBAG\tTRAVELER")
				for _, i := range items {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
						i.ID, i.Name, i.Quantity, checkbox(i.Packed), ref(i.CategoryID), ref(i.BagID), ref(i.TravelerID))
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int64VarP(&listID, "list", "l", 0, "packing list id")
	cmd.Flags().StringVarP(&only, "type", "t", "", "show only one entity type")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

func section(w *tabwriter.Writer, title, header string) {
	_, _ = fmt.Fprintf(w, "\n%s\n%s\n", title, header)
}

func checkbox(v bool) string {
	if v {
		return "[x]"
	}
	return "[ ]"
}

func ref(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var listID int64

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected to a list and print changes as they happen",
		Long: `Joins the list and prints every realtime event until interrupted.
Queued local changes are delivered while watching; the connection is
re-established with backoff when the hub goes away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			unsub := a.transport.Subscribe(api.MessageTypeAll, func(env api.Envelope) {
				a.io.Printf("%s %s\n", time.Now().Format(time.TimeOnly), describe(env))
			})
			defer unsub()

			if !a.network.IsOnline() {
				a.io.Println("Hub unreachable, waiting for it to come back...")
			}
			a.transport.Connect(listID, a.auth.UserID)

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().Int64VarP(&listID, "list", "l", 0, "packing list id")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

// describe форматирует входящий кадр для watch
func describe(env api.Envelope) string {
	switch env.Type {
	case api.MessageTypeConnected:
		return "connected"
	case api.MessageTypeJoined:
		var msg api.JoinedMessage
		if env.Decode(&msg) == nil {
			return fmt.Sprintf("joined list %d", msg.PackingListID)
		}
	case api.MessageTypeLeft:
		var msg api.LeftMessage
		if env.Decode(&msg) == nil {
			return fmt.Sprintf("left list %d", msg.PackingListID)
		}
	case api.MessageTypeError:
		var msg api.ErrorMessage
		if env.Decode(&msg) == nil {
			return "error: " + msg.Message
		}
	case api.MessageTypeUpdate:
		var msg api.UpdateMessage
		if env.Decode(&msg) == nil && msg.EntityID != nil {
			return change(msg.Entity, msg.Operation, *msg.EntityID, msg.Version, msg.UpdatedBy, msg.Data)
		}
	default:
		if b, err := env.EntityBroadcast(); err == nil {
			return change(b.Entity, b.Operation, b.EntityID, b.Version, b.UpdatedBy, b.Data)
		}
	}
	return env.RawType
}

func pastTense(operation string) string {
	switch models.OperationKind(operation) {
	case models.OperationCreate:
		return "created"
	case models.OperationUpdate:
		return "updated"
	case models.OperationDelete:
		return "deleted"
	default:
		return operation
	}
}

func change(entity, operation string, id, version, by int64, data []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s #%d %s", entity, id, pastTense(operation))
	if version > 0 {
		fmt.Fprintf(&sb, " v%d", version)
	}
	if by > 0 {
		fmt.Fprintf(&sb, " by user %d", by)
	}
	if len(data) > 0 {
		sb.WriteString(" ")
		sb.Write(data)
	}
	return sb.String()
}
