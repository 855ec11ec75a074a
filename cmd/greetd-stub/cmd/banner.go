package cmd

import (
	"fmt"
	"io"
)

const banner = `
                       _      _            _         _
   __ _ _ __ ___  ___| |_ __| |      ___| |_ _   _| |__
  / _` + "`" + ` | '__/ _ \/ _ \ __/ _` + "`" + ` |_____/ __| __| | | | '_ \
 | (_| | | |  __/  __/ || (_| |_____\__ \ |_| |_| | |_) |
  \__, |_|  \___|\___|\__\__,_|     |___/\__|\__,_|_.__/
  |___/
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  greetd test double - Version %s\x1b[0m\n\n", Version)
}
