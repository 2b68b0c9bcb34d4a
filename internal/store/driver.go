package store

import (
	"database/sql"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// driverName is the SQLite driver with docrepo's SQL functions installed.
const driverName = "sqlite3_docrepo"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("docrepo_fold", sqlFold, true); err != nil {
				return err
			}
			return conn.RegisterFunc("docrepo_like", sqlLike, true)
		},
	})
}

// sqlFold case-folds text values and passes every other value through.
// NULL arrives as a nil []byte and leaves as NULL.
func sqlFold(v any) any {
	switch x := v.(type) {
	case string:
		return cases.Fold().String(x)
	case []byte:
		if x == nil {
			return nil
		}
		return x
	default:
		return x
	}
}

// sqlLike reports whether value matches pattern. % matches any run, _ one
// character, and \ escapes the next character. Non-text values never match.
func sqlLike(pattern, value any) bool {
	p, ok := pattern.(string)
	if !ok {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	return likeMatch(p, s)
}

func likeMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		r, size := utf8.DecodeRuneInString(pattern)
		switch r {
		case '%':
			pattern = strings.TrimLeft(pattern, "%")
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(s); {
				if likeMatch(pattern, s[i:]) {
					return true
				}
				if i == len(s) {
					break
				}
				_, n := utf8.DecodeRuneInString(s[i:])
				i += n
			}
			return false
		case '_':
			if s == "" {
				return false
			}
			_, n := utf8.DecodeRuneInString(s)
			s = s[n:]
			pattern = pattern[size:]
		default:
			if r == '\\' && len(pattern) > size {
				pattern = pattern[size:]
				r, size = utf8.DecodeRuneInString(pattern)
			}
			c, n := utf8.DecodeRuneInString(s)
			if s == "" || c != r {
				return false
			}
			s = s[n:]
			pattern = pattern[size:]
		}
	}
	return s == ""
}
