// mdlfix repairs MDLB model assets: node classification and reordering,
// sibling chain and skeleton completion, faceset winding, canonical LOD
// slots, decal UV stripping and collection compaction.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Faultbox/mdlfix/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
