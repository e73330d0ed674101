package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/logger"
)

// 数据库迁移工具。
//
// 默认从环境变量（UNKAHI_DATABASE_TYPE / UNKAHI_DATABASE_DSN）读取连接信息，
// 命令行参数可以覆盖。按文件名顺序执行 migrations/<type>/ 下的全部 SQL 文件，
// 回滚时倒序执行 down 文件。
func main() {
	dbType := flag.String("type", "", "数据库类型: mysql 或 postgres，留空读取 UNKAHI_DATABASE_TYPE")
	dbDSN := flag.String("dsn", "", "数据库连接字符串，留空读取 UNKAHI_DATABASE_DSN")
	dir := flag.String("dir", "migrations", "迁移文件根目录")
	action := flag.String("action", "up", "操作: up (升级) 或 down (回滚)")
	flag.Parse()

	log := logger.NewDevelopmentLogger()
	defer log.Sync()

	if err := run(*dbType, *dbDSN, *dir, *action, log); err != nil {
		log.Fatal("迁移失败", zap.Error(err))
	}
}

func run(dbType, dsn, dir, action string, log *zap.Logger) error {
	if action != "up" && action != "down" {
		return fmt.Errorf("不支持的操作 %q", action)
	}

	// 命令行参数优先，其次是环境变量配置
	if dbType == "" || dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("加载配置: %w", err)
		}
		if dbType == "" {
			dbType = cfg.Database.Type
		}
		if dsn == "" {
			dsn = cfg.Database.DSN
		}
	}
	dbType = normalizeType(dbType)
	if dbType == "" || dsn == "" {
		return fmt.Errorf("缺少数据库类型或 DSN，通过 -type/-dsn 或 UNKAHI_DATABASE_* 指定")
	}
	if dbType != "mysql" && dbType != "postgres" {
		return fmt.Errorf("不支持的数据库类型 %q", dbType)
	}

	files, err := migrationFiles(filepath.Join(dir, dbType), action)
	if err != nil {
		return err
	}

	db, err := sql.Open(dbType, dsn)
	if err != nil {
		return fmt.Errorf("打开数据库: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("连接数据库: %w", err)
	}
	log.Info("已连接数据库", zap.String("type", dbType))

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("读取 %s: %w", file, err)
		}
		stmts := splitStatements(string(content))
		log.Info("执行迁移文件",
			zap.String("file", filepath.Base(file)),
			zap.Int("statements", len(stmts)))

		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("执行 %s 中的语句 %q: %w", filepath.Base(file), summarize(stmt), err)
			}
			log.Debug("语句执行成功", zap.String("sql", summarize(stmt)))
		}
	}

	log.Info("迁移完成", zap.String("action", action), zap.Int("files", len(files)))
	return nil
}

// normalizeType 把常见的类型别名归一为驱动名。
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "postgresql" || t == "pg" {
		return "postgres"
	}
	return t
}

// migrationFiles 返回目录下指定方向的迁移文件，up 按文件名升序，down 倒序。
func migrationFiles(dir, action string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("*.%s.sql", action)))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("目录 %s 下没有 %s 迁移文件", dir, action)
	}
	sort.Strings(matches)
	if action == "down" {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}
	return matches, nil
}

// splitStatements 按分号切分 SQL，分号出现在引号（'、"、`）内时不切分。
// 纯注释片段被丢弃。
func splitStatements(script string) []string {
	var stmts []string
	var buf strings.Builder
	var quote rune

	flush := func() {
		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt != "" && !isCommentOnly(stmt) {
			stmts = append(stmts, stmt)
		}
	}

	for _, r := range script {
		switch {
		case quote != 0:
			buf.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
			buf.WriteRune(r)
		case r == ';':
			buf.WriteRune(r)
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return stmts
}

// isCommentOnly 判断一段 SQL 是否只包含 -- 注释和空行。
func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// summarize 取语句首行用于日志展示。
func summarize(stmt string) string {
	line := strings.TrimSpace(strings.SplitN(stmt, "\n", 2)[0])
	if len(line) > 60 {
		line = line[:60] + "..."
	}
	return line
}
