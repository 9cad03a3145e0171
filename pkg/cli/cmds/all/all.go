// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/gasbridge/pkg/cli/cmds/timeline"
)
