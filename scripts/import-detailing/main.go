// import-detailing previews and commits structural-detailing exports from
// the command line.
//
// Usage:
//
//	go run ./scripts/import-detailing preview pilares.xml vigas.xml
//	go run ./scripts/import-detailing preview --save-session . pilares.xml
//	go run ./scripts/import-detailing resume --section 30x30 session_OB-1.json
//	go run ./scripts/import-detailing commit --owner <uuid> --policy append_only --confirm pilares.xml
//
// Database connection: config.yaml and the standard PG* environment variables.
package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
