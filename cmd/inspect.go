package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"auction-server/internal/app"
	"auction-server/internal/config"
	"auction-server/internal/models"
	"auction-server/internal/repository"
	"auction-server/internal/storage"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:       "inspect users|items",
	Short:     "Print the stored users or items",
	Long:      `Dumps a store as a table. Refuses to run while a server holds the data directory.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"users", "items"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.OutOrStdout(), config.FromEnv(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspect(out io.Writer, cfg config.Config, what string) error {
	lock, err := storage.LockDir(cfg.DataDir, false)
	if err != nil {
		return err
	}
	defer lock.Release()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	switch what {
	case "users":
		err = printUsers(w, filepath.Join(cfg.DataDir, app.UsersFile), cfg.BcryptCost)
	case "items":
		err = printItems(w, filepath.Join(cfg.DataDir, app.ItemsFile), cfg.Auction.BidHistoryCapacity)
	default:
		return fmt.Errorf("unknown store %q, want users or items", what)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

func printUsers(w io.Writer, path string, hashCost int) error {
	store, err := repository.OpenUserStore(path, hashCost)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.All()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tBALANCE\tCOOLDOWN_UNTIL")
	for _, u := range users {
		role := "user"
		if u.Role == models.RoleAdmin {
			role = "admin"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", u.ID, u.Username, role, u.Balance, formatUnix(u.CooldownUntil))
	}
	return nil
}

func printItems(w io.Writer, path string, capacity int) error {
	store, err := repository.OpenItemStore(path, capacity)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintln(w, "ID\tNAME\tSELLER\tWINNER\tBASE\tCURRENT\tENDS\tSTATUS\tBIDS")
	return store.Scan(func(item models.Item) bool {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%d\n",
			item.ID, item.Name, item.SellerID, item.WinnerID, item.BasePrice, item.CurrentBid,
			formatUnix(item.EndTime), item.Status, len(item.Bids))
		return true
	})
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
