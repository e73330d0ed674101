package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	t.Run("按分号切分多条语句", func(t *testing.T) {
		stmts := splitStatements("CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);")
		assert.Len(t, stmts, 2)
		assert.Equal(t, "CREATE TABLE a (id INT);", stmts[0])
	})

	t.Run("引号内的分号不切分", func(t *testing.T) {
		stmts := splitStatements(`INSERT INTO t VALUES ('a;b');`)
		assert.Len(t, stmts, 1)
	})

	t.Run("纯注释片段被丢弃", func(t *testing.T) {
		stmts := splitStatements("-- 初始表结构\n\nCREATE TABLE a (id INT);")
		assert.Len(t, stmts, 1)
	})

	t.Run("末尾无分号的语句也保留", func(t *testing.T) {
		stmts := splitStatements("DROP TABLE a")
		assert.Len(t, stmts, 1)
	})
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "postgres", normalizeType("postgresql"))
	assert.Equal(t, "postgres", normalizeType(" PG "))
	assert.Equal(t, "mysql", normalizeType("MySQL"))
}
