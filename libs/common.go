package libs

import (
	"fmt"

	"github.com/fatih/color"
)

// Banner print ascii banner
func Banner() string {
	version := color.HiWhiteString(VERSION)
	author := color.MagentaString(AUTHOR)
	b := color.GreenString(`
   ____  ____  __    ________              __
  / __ \/ __ \/ /   / ____/ /_  ___  _____/ /_____  _____
 / / / / /_/ / /   / /   / __ \/ _ \/ ___/ //_/ _ \/ ___/
/ /_/ / _, _/ /___/ /___/ / / /  __/ /__/ ,< /  __/ /
\___\_\_/ |_/_____/\____/_/ /_/\___/\___/_/|_|\___/_/
`)
	b += "\n" + color.GreenString(fmt.Sprintf("                 QR login flaw checker %v by %v\n", version, author))
	return b
}
