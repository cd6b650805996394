// Command awesome-events はイベント告知・参加登録サービスを起動する。
//
// 使い方:
//
//	awesome-events [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/hitoshi/awesome-events/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
