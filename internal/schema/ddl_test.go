package schema

import (
	"strings"
	"testing"
)

const mysqlDump = "/*\n3 rows from users table:\nid\tname\n1\tada\n*/\n" +
	"CREATE TABLE `users` (\n  `id` int NOT NULL,\n  `name` varchar(50)\n)\n\n\n" +
	"CREATE TABLE orders (\n  id INT,\n\n  user_id INT\n);\n\n" +
	"CREATE INDEX idx_orders_user ON orders(user_id);\n\n" +
	"-- line items\nCREATE TABLE IF NOT EXISTS public.\"line_items\" (id INT);\n\n" +
	"CREATE TABLE users (dup INT);\n"

func TestSplitDDL(t *testing.T) {
	docs := SplitDDL(mysqlDump)
	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3: %#v", len(docs), docs)
	}

	want := []string{"users", "orders", "line_items"}
	for i, name := range want {
		if docs[i].TableName != name {
			t.Fatalf("docs[%d].TableName = %q, want %q", i, docs[i].TableName, name)
		}
	}
	if strings.Contains(docs[0].Content, "rows from users") {
		t.Fatalf("block comment not stripped: %q", docs[0].Content)
	}
	if !strings.HasPrefix(docs[0].Content, "CREATE TABLE `users`") {
		t.Fatalf("users content = %q", docs[0].Content)
	}
	if !strings.Contains(docs[1].Content, "user_id INT") {
		t.Fatalf("orders content lost text after blank line: %q", docs[1].Content)
	}
	if strings.Contains(docs[1].Content, "CREATE INDEX") {
		t.Fatalf("orders content absorbed the index statement: %q", docs[1].Content)
	}
	if strings.Contains(docs[2].Content, "dup INT") {
		t.Fatalf("duplicate table definition was kept: %q", docs[2].Content)
	}
}

func TestSplitDDLIgnoresTextWithoutTables(t *testing.T) {
	if docs := SplitDDL("-- nothing here\n\nSELECT 1;"); len(docs) != 0 {
		t.Fatalf("docs = %#v, want none", docs)
	}
	if docs := SplitDDL(""); len(docs) != 0 {
		t.Fatalf("docs = %#v, want none", docs)
	}
}

func TestSplitDDLHandlesWindowsLineEndings(t *testing.T) {
	docs := SplitDDL("CREATE TABLE a (id INT);\r\n\r\nCREATE TABLE b (id INT);\r\n")
	if len(docs) != 2 || docs[0].TableName != "a" || docs[1].TableName != "b" {
		t.Fatalf("docs = %#v", docs)
	}
}
