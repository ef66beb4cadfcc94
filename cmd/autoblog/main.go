// Command autoblog はフィードの自動投稿サーバーとワーカーを起動する。
//
//	autoblog [serve|worker|import|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/autoblog/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "autoblog: %v\n", err)
		os.Exit(1)
	}
}
