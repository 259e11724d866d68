package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/segment"
)

var (
	segInput  inputFlags
	segK      int
	segOutput string

	optInput  inputFlags
	optMaxK   int
	optMethod string
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Cluster the cleaned rows into k segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if segK < 1 {
			return fmt.Errorf("-k must be at least 1")
		}
		ctx, err := segInput.start(args[0])
		if err != nil {
			return err
		}
		if ctx, err = ctx.Clean(); err != nil {
			return err
		}
		if ctx, err = ctx.Segment(segK); err != nil {
			return err
		}
		col, ok := ctx.Dataset.Column(segment.Column)
		if !ok {
			fmt.Println("⚠ Warning: no numeric columns to cluster; dataset left unchanged")
			return nil
		}
		sizes := map[string]int{}
		for i := 0; i < col.Len(); i++ {
			sizes[col.Display(i)]++
		}
		fmt.Printf("✓ Created %d segments\n", segK)
		for s := 0; s < segK; s++ {
			fmt.Printf("- segment %d: %d rows\n", s, sizes[strconv.Itoa(s)])
		}
		if segOutput != "" {
			if err := writeDataset(ctx.Dataset, segOutput); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote segmented data to %s\n", segOutput)
		}
		return nil
	},
}

var segmentOptimizeCmd = &cobra.Command{
	Use:   "optimize <file>",
	Short: "Suggest a number of segments (elbow or silhouette)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxK := optMaxK
		if !cmd.Flags().Changed("max-k") {
			maxK = maxClusters()
		}
		ctx, err := optInput.start(args[0])
		if err != nil {
			return err
		}
		if ctx, err = ctx.Clean(); err != nil {
			return err
		}
		opt := segmentOptions()
		var rec segment.Recommendation
		label := "inertia"
		switch strings.ToLower(optMethod) {
		case "elbow":
			rec, err = segment.Elbow(ctx.Dataset, maxK, opt)
		case "silhouette":
			label = "silhouette"
			rec, err = segment.Silhouette(ctx.Dataset, maxK, opt)
		default:
			return fmt.Errorf("unsupported --method: %s (use elbow|silhouette)", optMethod)
		}
		if err != nil {
			return err
		}
		for _, s := range rec.Scores {
			marker := ""
			if s.K == rec.BestK {
				marker = "  <- suggested"
			}
			fmt.Printf("k=%d %s=%.4f%s\n", s.K, label, s.Value, marker)
		}
		fmt.Printf("✓ Suggested segments: %d\n", rec.BestK)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	segmentCmd.AddCommand(segmentOptimizeCmd)
	segInput.bind(segmentCmd)
	segmentCmd.Flags().IntVarP(&segK, "segments", "k", 3, "number of segments")
	segmentCmd.Flags().StringVarP(&segOutput, "output", "o", "", "write the segmented data (.xlsx, or .csv)")

	optInput.bind(segmentOptimizeCmd)
	segmentOptimizeCmd.Flags().IntVar(&optMaxK, "max-k", 10, "largest k to try")
	segmentOptimizeCmd.Flags().StringVar(&optMethod, "method", "elbow", "scoring method: elbow|silhouette")
}
