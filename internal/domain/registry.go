package domain

// RegistryRecord catalogs an initialized extra-account-meta list.
// Corresponds to hook_registries table in PostgreSQL.
type RegistryRecord struct {
	Mint          string // base58 mint, primary key
	Address       string // registry PDA
	HookProgram   string // owning program
	Bump          uint8
	ExtraAccounts int    // number of metas
	Data          []byte // raw account data
	Slot          int64  // slot the record was first seen at
	CreatedAt     int64  // Unix ms
}
