package drivers

import (
	// Registers "pgx"; postgres:// sources are passed through as DSNs.
	_ "github.com/jackc/pgx/v5/stdlib"
)
