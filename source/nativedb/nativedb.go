package nativedb

// The native-definition oracle: a read-only mapping from 64-bit hash to the
// engine function it names, with version-translation tables for hashes that
// were shuffled between engine releases. One DB may be shared between any
// number of compilations.

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Def struct {
	Hash         uint64
	OriginalHash uint64
	Name         string
	Signature    string
}

type DB struct {
	byHash       map[uint64]Def
	byName       map[string]uint64
	translations map[uint64]uint64 // newer hash -> older hash
}

func NewInMemory() *DB {
	return &DB{
		byHash:       map[uint64]Def{},
		byName:       map[string]uint64{},
		translations: map[uint64]uint64{},
	}
}

func (db *DB) Register(def Def) {
	db.byHash[def.Hash] = def
	if def.Name != "" {
		db.byName[def.Name] = def.Hash
	}
}

func (db *DB) AddTranslation(newer, older uint64) {
	db.translations[newer] = older
}

func (db *DB) Resolve(hash uint64) (Def, bool) {
	def, ok := db.byHash[hash]
	return def, ok
}

func (db *DB) ResolveByName(name string) (Def, bool) {
	hash, ok := db.byName[name]
	if !ok {
		return Def{}, false
	}
	return db.byHash[hash], true
}

// ResolveOriginal walks the translation tables back to the oldest hash known
// for a native. A hash with no entry is its own original. The walk is
// bounded so a corrupt table cannot loop it.
func (db *DB) ResolveOriginal(hash uint64) uint64 {
	seen := map[uint64]bool{}
	for !seen[hash] {
		seen[hash] = true
		if def, ok := db.byHash[hash]; ok && def.OriginalHash != 0 {
			return def.OriginalHash
		}
		older, ok := db.translations[hash]
		if !ok {
			return hash
		}
		hash = older
	}
	return hash
}

// OpenSQLite loads a native database file into memory and closes it again;
// the oracle itself never touches the file after loading. Expected schema:
//
//	CREATE TABLE natives (hash INTEGER PRIMARY KEY, original_hash INTEGER,
//	                      name TEXT, signature TEXT);
//	CREATE TABLE translations (newer INTEGER, older INTEGER);
func OpenSQLite(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("nativedb: opening %s: %w", path, err)
	}
	defer conn.Close()

	db := NewInMemory()
	rows, err := conn.Query(`SELECT hash, original_hash, name, signature FROM natives`)
	if err != nil {
		return nil, fmt.Errorf("nativedb: reading natives: %w", err)
	}
	for rows.Next() {
		var def Def
		var hash, original int64
		if err := rows.Scan(&hash, &original, &def.Name, &def.Signature); err != nil {
			rows.Close()
			return nil, fmt.Errorf("nativedb: bad natives row: %w", err)
		}
		def.Hash = uint64(hash)
		def.OriginalHash = uint64(original)
		db.Register(def)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = conn.Query(`SELECT newer, older FROM translations`)
	if err != nil {
		return nil, fmt.Errorf("nativedb: reading translations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var newer, older int64
		if err := rows.Scan(&newer, &older); err != nil {
			return nil, fmt.Errorf("nativedb: bad translations row: %w", err)
		}
		db.AddTranslation(uint64(newer), uint64(older))
	}
	return db, rows.Err()
}

// Joaat is the engine's Jenkins one-at-a-time hash, used for script names
// and as the fallback hash of a native declared without one.
func Joaat(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		h += uint32(c)
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}
