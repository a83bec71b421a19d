package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inferd/pkg/types"
)

var flagComplexity float64

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Send a query to a running daemon",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := daemonURL()
		if err != nil {
			return err
		}
		var resp types.QueryResponse
		err = callDaemon("POST", base+"/v1/query", types.QueryRequest{
			Query:      strings.Join(args, " "),
			Complexity: flagComplexity,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println(resp.Response)
		if resp.CacheHit {
			fmt.Printf("(cache %s, %dms)\n", resp.CacheLayer, resp.LatencyMS)
		} else {
			fmt.Printf("(%s, %dms)\n", resp.TierUsed, resp.LatencyMS)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().Float64Var(&flagComplexity, "complexity", 0.3, "complexity hint in [0,1]")
}
