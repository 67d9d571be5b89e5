package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/models"
)

// NewAddCommand creates the add command with one subcommand per entity type.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	var listID int64

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a category, bag, traveler or item to a list",
	}
	cmd.PersistentFlags().Int64VarP(&listID, "list", "l", 0, "packing list id")
	_ = cmd.MarkPersistentFlagRequired("list")

	var name string
	addName := func(c *cobra.Command) {
		c.Flags().StringVar(&name, "name", "", "name")
		_ = c.MarkFlagRequired("name")
	}

	category := &cobra.Command{
		Use:   "category",
		Short: "Add a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, opts, listID, func(a *App) (int64, error) {
				return a.data.CreateCategory(cmd.Context(), listID, &models.Category{Name: name})
			})
		},
	}
	addName(category)

	var color string
	bag := &cobra.Command{
		Use:   "bag",
		Short: "Add a bag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, opts, listID, func(a *App) (int64, error) {
				return a.data.CreateBag(cmd.Context(), listID, &models.Bag{Name: name, Color: color})
			})
		},
	}
	addName(bag)
	bag.Flags().StringVar(&color, "color", "", "bag color")

	traveler := &cobra.Command{
		Use:   "traveler",
		Short: "Add a traveler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, opts, listID, func(a *App) (int64, error) {
				return a.data.CreateTraveler(cmd.Context(), listID, &models.Traveler{Name: name})
			})
		},
	}
	addName(traveler)

	var (
		notes                         string
		quantity                      int
		packed                        bool
		categoryID, bagID, travelerID int64
	)
	item := &cobra.Command{
		Use:   "item",
		Short: "Add an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			i := &models.Item{
				Name:     name,
				Notes:    notes,
				Quantity: quantity,
				Packed:   packed,
			}
			if cmd.Flags().Changed("category") {
				i.CategoryID = models.Int64Ptr(categoryID)
			}
			if cmd.Flags().Changed("bag") {
				i.BagID = models.Int64Ptr(bagID)
			}
			if cmd.Flags().Changed("traveler") {
				i.TravelerID = models.Int64Ptr(travelerID)
			}
			return record(cmd, opts, listID, func(a *App) (int64, error) {
				return a.data.CreateItem(cmd.Context(), listID, i)
			})
		},
	}
	addName(item)
	item.Flags().StringVar(&notes, "notes", "", "free-form notes")
	item.Flags().IntVarP(&quantity, "quantity", "q", 1, "how many")
	item.Flags().BoolVar(&packed, "packed", false, "already packed")
	item.Flags().Int64Var(&categoryID, "category", 0, "category id")
	item.Flags().Int64Var(&bagID, "bag", 0, "bag id")
	item.Flags().Int64Var(&travelerID, "traveler", 0, "traveler id")

	cmd.AddCommand(category, bag, traveler, item)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var (
		listID       int64
		sets         []string
		togglePacked bool
	)

	cmd := &cobra.Command{
		Use:   "update <entity> <id>",
		Short: "Change fields of an entity",
		Example: `  packsync update item 12 --list 5 --set name=Boots --set quantity=2
  packsync update item 12 --list 5 --set bagId=null
  packsync update item 12 --list 5 --toggle-packed`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, id, err := parseTarget(args)
			if err != nil {
				return err
			}

			if togglePacked {
				if entityType != models.EntityItem || len(sets) > 0 {
					return errors.New("--toggle-packed applies to items only and cannot be combined with --set")
				}
				return record(cmd, opts, listID, func(a *App) (int64, error) {
					packed, err := a.data.TogglePacked(cmd.Context(), listID, id)
					if err == nil {
						a.io.Printf("Item %d packed: %t\n", id, packed)
					}
					return 0, err
				})
			}

			changes, err := parseChanges(sets)
			if err != nil {
				return err
			}
			return record(cmd, opts, listID, func(a *App) (int64, error) {
				return a.data.Update(cmd.Context(), listID, entityType, id, changes)
			})
		},
	}

	cmd.Flags().Int64VarP(&listID, "list", "l", 0, "packing list id")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value; value is JSON for non-text fields")
	cmd.Flags().BoolVar(&togglePacked, "toggle-packed", false, "flip the packed flag of an item")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	var listID int64

	cmd := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, id, err := parseTarget(args)
			if err != nil {
				return err
			}
			return record(cmd, opts, listID, func(a *App) (int64, error) {
				return a.data.Delete(cmd.Context(), listID, entityType, id)
			})
		},
	}

	cmd.Flags().Int64VarP(&listID, "list", "l", 0, "packing list id")
	_ = cmd.MarkFlagRequired("list")
	return cmd
}

// record выполняет мутацию локально и пытается сразу доставить ее хабу
func record(cmd *cobra.Command, opts *RootOptions, listID int64, mutate func(a *App) (int64, error)) error {
	if listID <= 0 {
		return errors.New("--list must be a positive id")
	}

	a, err := openApp(cmd, opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	opID, err := mutate(a)
	if err != nil {
		return err
	}
	if opID > 0 {
		a.io.Printf("Recorded change #%d\n", opID)
	}

	report, err := a.deliver(cmd.Context(), listID)
	if err != nil {
		return err
	}
	a.printReport(report)
	return nil
}

// parseTarget разбирает "<entity> <id>"; сам список изменять нельзя
func parseTarget(args []string) (models.EntityType, int64, error) {
	entityType, err := models.ParseEntityType(args[0])
	if err != nil {
		return "", 0, err
	}
	if entityType == models.EntityList {
		return "", 0, errors.New("lists are managed by the hub operator")
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid id %q", args[1])
	}
	return entityType, id, nil
}

// textFields принимаются как есть, остальные значения разбираются как JSON
var textFields = map[string]bool{"name": true, "notes": true, "color": true}

func parseChanges(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, errors.New("nothing to change, use --set field=value")
	}

	changes := make(map[string]any, len(sets))
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want field=value", kv)
		}
		if textFields[key] {
			changes[key] = raw
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		changes[key] = v
	}
	return changes, nil
}
