// Package logger はJSON構造化ログの初期化を提供する。
// APIサーバー・ワーカーの両モードで起動時に1回だけ呼び出す。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup は指定writerに出力するJSON構造化ログのslog.Loggerを生成する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログをグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
// コンテナ環境ではstdout収集を前提とするため、ファイル出力は提供しない。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}
