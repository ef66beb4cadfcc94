package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバー（ダッシュボードと設定API）を起動する。
	CommandServe Command = "serve"
	// CommandWorker は定期インポートとログ掃除を行うワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandImport はインポートを1回だけ実行して終了する。
	CommandImport  Command = "import"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandImport):      CommandImport,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数なしや未知のコマンドはCommandServeとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction struct {
	Name  string // "up" / "down" / "status"
	Steps int    // downのときのみ使う
}

// ParseMigrateArgs は `migrate [up|down N|status]` の引数部分を解析する。
// 引数なしはupとみなす。
func ParseMigrateArgs(args []string) (MigrateAction, error) {
	if len(args) == 0 {
		return MigrateAction{Name: "up"}, nil
	}

	switch args[0] {
	case "up", "status":
		if len(args) > 1 {
			return MigrateAction{}, fmt.Errorf("migrate %s takes no arguments", args[0])
		}
		return MigrateAction{Name: args[0]}, nil
	case "down":
		if len(args) != 2 {
			return MigrateAction{}, fmt.Errorf("usage: migrate down N")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return MigrateAction{}, fmt.Errorf("invalid step count %q: must be a positive integer", args[1])
		}
		return MigrateAction{Name: "down", Steps: n}, nil
	default:
		return MigrateAction{}, fmt.Errorf("unknown migrate action %q", args[0])
	}
}
