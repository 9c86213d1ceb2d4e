// Command sqlregexp runs SQL against SQLite with regexp functions installed.
package main

import "github.com/mcfsalla/sqlregexp/internal/cmd"

func main() {
	cmd.Execute()
}
