// Package all registers every built-in backend with the adapter registry.
//
//	import _ "github.com/leapstack-labs/leapconn/pkg/adapters/all"
package all

import (
	_ "github.com/leapstack-labs/leapconn/pkg/adapters/duckdb"   // duckdb backend
	_ "github.com/leapstack-labs/leapconn/pkg/adapters/mysql"    // mysql backend
	_ "github.com/leapstack-labs/leapconn/pkg/adapters/postgres" // postgres backend
	_ "github.com/leapstack-labs/leapconn/pkg/adapters/sqlite"   // sqlite backend
)
