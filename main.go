package main

import (
	"context"
	"os"

	"github.com/shouni/go-story-kit/cmd"

	"github.com/charmbracelet/fang"
)

const version = "0.1.0"

// main はアプリケーションの唯一のエントリーポイントなのだ！
// コマンドライン引数の解析と実行はすべて cmd パッケージに委ねるのだよ。
func main() {
	root := cmd.NewRootCmd()
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
