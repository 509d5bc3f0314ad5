// Command newsroom はフィード取り込みパイプラインのAPIサーバー・ワーカー・運用コマンドを提供する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/newsroom/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "newsroom: %v\n", err)
		os.Exit(1)
	}
}
