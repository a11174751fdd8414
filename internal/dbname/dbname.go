// Package dbname validates the identifier rule shared by every create_*
// and rename_* operation across Database, Table, Column and Index.
package dbname

import "strand/internal/dberrors"

const maxLen = 1023

// Validate reports an InvalidName error unless name is 1-1023 bytes, its
// first byte is [A-Za-z0-9] and every remaining byte is [A-Za-z0-9_].
func Validate(name string) error {
	if len(name) == 0 || len(name) > maxLen {
		return dberrors.New(dberrors.InvalidName, "Validate", "name length must be 1..%d bytes, got %d", maxLen, len(name))
	}
	if !isAlnum(name[0]) {
		return dberrors.New(dberrors.InvalidName, "Validate", "name %q must start with a letter or digit", name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isAlnum(c) && c != '_' {
			return dberrors.New(dberrors.InvalidName, "Validate", "name %q has invalid byte %q at position %d", name, c, i)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
