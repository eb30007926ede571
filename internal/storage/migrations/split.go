package migrations

import (
	"fmt"
	"io/fs"
	"strings"
)

// splitStatements splits a SQL script on semicolons outside single-quoted
// literals. Line comments (--) outside literals are dropped.
func splitStatements(script string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quoted  bool
		comment bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case comment:
			if ch == '\n' {
				comment = false
				cur.WriteByte(ch)
			}
		case quoted:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(script) && script[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
					continue
				}
				quoted = false
			}
		case ch == '-' && i+1 < len(script) && script[i+1] == '-':
			comment = true
			i++
		case ch == '\'':
			quoted = true
			cur.WriteByte(ch)
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}

// eachStatement calls fn for every statement of every .sql file under dir,
// files in lexical order.
func eachStatement(fsys fs.FS, dir string, fn func(file, stmt string) error) error {
	files, err := listSQL(fsys, dir)
	if err != nil {
		return fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if err := fn(file, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}
	return nil
}
