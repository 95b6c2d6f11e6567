package cmd

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"stream-scraper/scraper"
)

var streamHost string

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Publish a host's catalog onto the durable stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		if streamHost == "" {
			return usageErrorf("stream: --host is required")
		}
		rdb := redis.NewClient(&redis.Options{Addr: firstOf(redisAddr, "localhost:6379")})
		defer rdb.Close()

		s, err := scraper.NewBuilder().
			SetHost(streamHost).
			SetQPS(10).
			SetCatalogDir(catalogDir).
			SetRedisClient(rdb).
			Build()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.StartStream(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Stream started. name: " + s.StreamName())
		return nil
	},
}

func init() {
	streamCmd.Flags().StringVar(&streamHost, "host", "", "Target host, e.g. example.com")
	rootCmd.AddCommand(streamCmd)
}
