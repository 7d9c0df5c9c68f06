// Command safeexec gates agent-issued shell commands behind a rule table,
// a human approval prompt and an append-only audit log.
package main

import (
	"os"

	"github.com/Dicklesworthstone/safeexec/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
