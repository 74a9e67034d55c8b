package bridge

import "fmt"

// User-visible texts.
const (
	msgPrintDir      = "現在の作業ディレクトリ:\n%s"
	msgResetDir      = "作業ディレクトリがデフォルトに戻りました:\n%s"
	msgChangeDir     = "作業ディレクトリが次に変更されました:\n%s"
	msgChangeDirFail = "エラー: ディレクトリ '%s' が見つかりません。"
	msgToolResult    = "--- Gemini-CLI実行結果 ---\n%s"
	msgToolError     = "Gemini-CLIの実行中にエラーが発生しました:\n%s"

	// MsgModelFailure is sent when the model call fails.
	MsgModelFailure = "AIの応答生成中にエラーが発生しました。しばらくしてから再度お試しください。"
)

func printDirText(dir string) string      { return fmt.Sprintf(msgPrintDir, dir) }
func resetDirText(dir string) string      { return fmt.Sprintf(msgResetDir, dir) }
func changeDirText(dir string) string     { return fmt.Sprintf(msgChangeDir, dir) }
func changeDirFailText(dir string) string { return fmt.Sprintf(msgChangeDirFail, dir) }
func toolResultText(stdout string) string { return fmt.Sprintf(msgToolResult, stdout) }
func toolErrorText(err error) string      { return fmt.Sprintf(msgToolError, err) }
