package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

// upMigrations lists the embedded *.up.sql files in lexical order, which is
// also version order given zero padded prefixes.
func upMigrations() ([]string, error) {
	names, err := fs.Glob(embeddedMigrations, path.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	for i := range names {
		names[i] = path.Base(names[i])
	}
	slices.Sort(names)
	return names, nil
}

func LatestMigrationVersion() (uint, error) {
	names, err := upMigrations()
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, errors.New("no embedded migrations found")
	}

	var latest uint
	for _, name := range names {
		version, ok := parseMigrationVersion(name)
		if !ok {
			return 0, fmt.Errorf("invalid migration filename: %s", name)
		}
		latest = max(latest, version)
	}
	return latest, nil
}

// MigrationsChecksum hashes the name and body of every up migration. The
// schema gate compares it with the value stored by the last migrate run.
func MigrationsChecksum() (string, error) {
	names, err := upMigrations()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, name := range names {
		body, err := fs.ReadFile(embeddedMigrations, path.Join(migrationsDir, name))
		if err != nil {
			return "", fmt.Errorf("read migration %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s\x00%s\x00", name, body)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// parseMigrationVersion reads the numeric prefix of 000003_add_index.up.sql.
func parseMigrationVersion(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
