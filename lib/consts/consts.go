// Package consts houses version information and the CLI banner.
package consts

import "strings"

// Version is the current release version.
const Version = "0.4.0"

// Banner returns the ASCII banner shown by the root command.
func Banner() string {
	banner := `
        _ ___ _
  ___(_) _| |_
 (_-< |  _|  _|
 /__/_|_|  \_|   typechecking, interrupted`
	return strings.TrimLeft(banner, "\n")
}
