package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stream-scraper/internal/catalog"
)

var listHost string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every URL in a host's catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listHost == "" {
			return usageErrorf("list: --host is required")
		}
		cat, err := catalog.Open(listHost, catalogDir)
		if err != nil {
			return err
		}
		defer cat.Close()

		cnt := 0
		err = cat.Iterate("", func(_, url string) bool {
			fmt.Println(url)
			cnt++
			return true
		})
		if err != nil {
			return err
		}
		fmt.Printf("Total: %d urls\n", cnt)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listHost, "host", "", "Target host, e.g. example.com")
	rootCmd.AddCommand(listCmd)
}
