package waggle

import "github.com/colonyops/waggle/internal/data/mapstore"

// App aggregates the wired services shared by CLI commands. Fields are
// populated in the CLI Before hook, after flags and config are known.
type App struct {
	Sync  *Service
	Store mapstore.Store
}
